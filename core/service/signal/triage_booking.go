package signal

import "strings"

// maxShortBookingWords bounds a "near-exact" booking message ("mau booking", "jadwal besok").
const maxShortBookingWords = 3

// IsShortBooking reports whether the normalized message is essentially just a booking
// keyword: the keyword alone (trailing punctuation ignored), or a message of at most
// three words that contains one.
func IsShortBooking(normalized string) bool {
	t := strings.TrimRight(normalized, ".!?, ")
	if t == "" {
		return false
	}
	for _, kw := range bookingExactKeywords {
		if t == kw {
			return true
		}
	}
	words := strings.Fields(t)
	if len(words) > maxShortBookingWords {
		return false
	}
	for _, w := range words {
		w = strings.Trim(w, ".!?,")
		for _, kw := range bookingExactKeywords {
			if w == kw {
				return true
			}
		}
	}
	return false
}
