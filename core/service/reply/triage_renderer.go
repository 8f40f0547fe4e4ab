// Package reply renders template identifiers into outbound WhatsApp text.
package reply

import (
	"fmt"
	"strings"

	"triage_server/core/domain"
)

// Style selects the register of every block.
type Style string

const (
	StyleFormal Style = "formal"
	StyleCasual Style = "casual"
)

// ParseStyle falls back to formal for anything unknown.
func ParseStyle(s string) Style {
	if Style(strings.ToLower(strings.TrimSpace(s))) == StyleCasual {
		return StyleCasual
	}
	return StyleFormal
}

// Workshop is the static shop information shown in the info block.
type Workshop struct {
	Name    string
	Address string
	MapsURL string
	Hours   string
	Phone   string
}

// Renderer composes templates out of fixed blocks.
type Renderer struct {
	style    Style
	workshop Workshop
}

// NewRenderer creates a renderer. Empty workshop fields are left out of the info block.
func NewRenderer(style Style, workshop Workshop) *Renderer {
	if workshop.Name == "" {
		workshop.Name = "Bengkel"
	}
	return &Renderer{style: style, workshop: workshop}
}

// Style returns the configured style.
func (r *Renderer) Style() Style { return r.style }

// Render returns the full text for id. Unknown ids render the standard triage template
// so a reply is always produced.
func (r *Renderer) Render(id domain.TemplateID) string {
	lines, ok := r.phrases()[id]
	if !ok {
		lines = r.phrases()[domain.TemplateTriageStandard]
	}

	parts := []string{r.greeting(), lines}
	switch id {
	case domain.TemplateTowing:
		parts = append(parts, r.towingBlock(), r.infoBlock())
	case domain.TemplateLocation, domain.TemplateBooking,
		domain.TemplatePremiumEmergency, domain.TemplateComplexEmergency:
		parts = append(parts, r.infoBlock())
	}
	parts = append(parts, r.signature())

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func (r *Renderer) greeting() string {
	if r.style == StyleCasual {
		return "Halo kak 👋"
	}
	return fmt.Sprintf("Selamat datang di %s.", r.workshop.Name)
}

func (r *Renderer) signature() string {
	if r.style == StyleCasual {
		return fmt.Sprintf("Salam,\nTim %s 🔧", r.workshop.Name)
	}
	return fmt.Sprintf("Hormat kami,\nTim %s", r.workshop.Name)
}

// infoBlock lists the workshop fields that are configured.
func (r *Renderer) infoBlock() string {
	w := r.workshop
	var b strings.Builder
	b.WriteString("📍 " + w.Name)
	if w.Address != "" {
		b.WriteString("\n" + w.Address)
	}
	if w.MapsURL != "" {
		b.WriteString("\nMaps: " + w.MapsURL)
	}
	if w.Hours != "" {
		b.WriteString("\nJam buka: " + w.Hours)
	}
	if w.Phone != "" {
		b.WriteString("\nTelepon: " + w.Phone)
	}
	return b.String()
}

func (r *Renderer) towingBlock() string {
	if r.style == StyleCasual {
		return "Biar cepat, kirim ya kak:\n1. Share lokasi mobil sekarang\n2. Merk, tipe, tahun mobil\n3. Mobil di pinggir jalan aman atau tidak\nJangan dipaksa jalan dulu ya."
	}
	return "Mohon kirimkan:\n1. Lokasi kendaraan saat ini (share location)\n2. Merek, tipe, dan tahun kendaraan\n3. Kondisi posisi kendaraan (aman di bahu jalan atau tidak)\nMohon kendaraan tidak dipaksakan berjalan."
}

func (r *Renderer) phrases() map[domain.TemplateID]string {
	if r.style == StyleCasual {
		return casualPhrases
	}
	return formalPhrases
}

var formalPhrases = map[domain.TemplateID]string{
	domain.TemplateBooking:          "Terima kasih, permintaan booking Anda kami terima. Mohon kirimkan nama, jenis kendaraan, dan hari/jam yang Anda inginkan. Admin kami akan mengonfirmasi jadwalnya.",
	domain.TemplateTowing:           "Kami siap membantu pengiriman derek untuk kendaraan Anda. Admin kami segera menghubungi Anda.",
	domain.TemplateLocation:         "Berikut lokasi bengkel kami.",
	domain.TemplateAntiNegotiation:  "Biaya perbaikan transmisi bergantung pada hasil pemeriksaan. Kami tidak memberikan harga sebelum diagnosa agar estimasinya akurat. Pemeriksaan awal dapat dijadwalkan kapan saja.",
	domain.TemplatePremiumEmergency: "Kondisi kendaraan Anda kami prioritaskan. Mohon kendaraan tidak dipaksakan berjalan. Teknisi senior kami akan segera menghubungi Anda.",
	domain.TemplateComplexEmergency: "Gejala tersebut umum terjadi pada transmisi CVT/DCT dan perlu penanganan khusus. Mohon kendaraan tidak dipaksakan berjalan. Admin kami akan segera menghubungi Anda.",
	domain.TemplateTriageStandard:   "Terima kasih atas informasinya. Boleh dijelaskan merek, tipe, tahun kendaraan, dan gejala yang dirasakan?",
	domain.TemplateTriageComplex:    "Terima kasih. Kendaraan dengan transmisi CVT/DCT/hybrid memerlukan pemeriksaan khusus. Sejak kapan gejalanya muncul dan apakah ada lampu indikator yang menyala?",
	domain.TemplateTriagePremium:    "Terima kasih. Kendaraan premium Anda akan ditangani teknisi senior kami. Mohon jelaskan gejala yang dirasakan dan apakah kendaraan masih bisa berjalan normal.",
	domain.TemplateFollowUpStage1:   "Kami ingin menindaklanjuti pesan Anda sebelumnya. Apakah kendaraan Anda masih mengalami kendala? Kami siap membantu menjadwalkan pemeriksaan.",
	domain.TemplateFollowUpStage2:   "Menindaklanjuti percakapan kemarin: jika kendaraan masih bermasalah, slot pemeriksaan minggu ini masih tersedia. Balas pesan ini untuk booking.",
}

var casualPhrases = map[domain.TemplateID]string{
	domain.TemplateBooking:          "Siap kak, booking dicatat ya. Kirim nama, mobilnya apa, sama mau datang hari/jam berapa. Nanti admin konfirmasi jadwalnya.",
	domain.TemplateTowing:           "Siap kak, kita bantu kirim derek. Admin langsung hubungi kakak ya.",
	domain.TemplateLocation:         "Ini lokasi bengkel kita kak.",
	domain.TemplateAntiNegotiation:  "Soal biaya tergantung hasil cek dulu kak, biar estimasinya pas dan nggak nebak. Cek awal bisa kapan aja.",
	domain.TemplatePremiumEmergency: "Mobil kakak kita prioritasin. Jangan dipaksa jalan dulu ya kak, teknisi senior kita segera hubungi.",
	domain.TemplateComplexEmergency: "Gejala kayak gitu sering di matic CVT/DCT dan perlu ditangani khusus. Jangan dipaksa jalan dulu ya kak, admin segera hubungi.",
	domain.TemplateTriageStandard:   "Makasih infonya kak. Mobilnya apa, tahun berapa, dan gejalanya gimana?",
	domain.TemplateTriageComplex:    "Makasih kak. Matic CVT/DCT/hybrid perlu dicek khusus. Gejalanya muncul sejak kapan, ada lampu indikator nyala nggak?",
	domain.TemplateTriagePremium:    "Makasih kak. Mobil kakak bakal dipegang teknisi senior. Gejalanya gimana, masih bisa jalan normal nggak?",
	domain.TemplateFollowUpStage1:   "Kak, gimana kabar mobilnya? Masih ada kendala? Kita bisa bantu jadwalin cek.",
	domain.TemplateFollowUpStage2:   "Kak, kalau mobilnya masih bermasalah, minggu ini masih ada slot cek. Balas aja buat booking ya.",
}
