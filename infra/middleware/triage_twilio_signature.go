package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// TwilioSignatureHeader carries the request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature rejects webhook calls whose X-Twilio-Signature does not match.
// publicBaseURL is the externally visible origin Twilio was configured with; the path and
// query of the request are appended to it.
func TwilioSignature(authToken, publicBaseURL string) fiber.Handler {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(c *fiber.Ctx) error {
		signature := c.Get(TwilioSignatureHeader)
		if signature == "" {
			return apperr.InvalidSignature()
		}

		params := make(map[string][]string)
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			params[string(k)] = append(params[string(k)], string(v))
		})

		expected := ComputeTwilioSignature(authToken, base+c.OriginalURL(), params)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			logger.WithField("path", c.Path()).Warn("twilio signature mismatch")
			return apperr.InvalidSignature()
		}
		return c.Next()
	}
}

// ComputeTwilioSignature signs url followed by every POST parameter, sorted by name, as
// name+value, with HMAC-SHA1 keyed by the auth token.
func ComputeTwilioSignature(authToken, url string, params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
