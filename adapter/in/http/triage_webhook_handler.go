package http

import (
	"encoding/xml"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/ratelimit"
)

// WebhookPath is the Twilio inbound message callback.
const WebhookPath = "/webhook/whatsapp"

// twiml is the Twilio Messaging response document.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message *string  `xml:"Message,omitempty"`
}

type WebhookMetrics struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Limited    int64 `json:"limited"`
	Ignored    int64 `json:"ignored"`
}

// WebhookHandler answers Twilio WhatsApp callbacks with TwiML.
type WebhookHandler struct {
	triage  in.TriageUseCase
	dedup   *ratelimit.Deduplicator
	limiter *ratelimit.SlidingWindowLimiter
	metrics WebhookMetrics
	log     zerolog.Logger
}

// NewWebhookHandler creates the handler. dedup and limiter may be nil.
func NewWebhookHandler(
	triage in.TriageUseCase,
	dedup *ratelimit.Deduplicator,
	limiter *ratelimit.SlidingWindowLimiter,
	log zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		triage:  triage,
		dedup:   dedup,
		limiter: limiter,
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Register mounts the webhook. guards run before the handler (signature check, body cap).
func (h *WebhookHandler) Register(app fiber.Router, guards ...fiber.Handler) {
	handlers := append(guards, h.WhatsApp)
	app.Post(WebhookPath, handlers...)
}

func (h *WebhookHandler) GetMetrics() WebhookMetrics {
	return WebhookMetrics{
		Processed:  atomic.LoadInt64(&h.metrics.Processed),
		Duplicates: atomic.LoadInt64(&h.metrics.Duplicates),
		Limited:    atomic.LoadInt64(&h.metrics.Limited),
		Ignored:    atomic.LoadInt64(&h.metrics.Ignored),
	}
}

// WhatsApp handles POST /webhook/whatsapp.
func (h *WebhookHandler) WhatsApp(c *fiber.Ctx) error {
	from := c.FormValue("From")
	body := strings.TrimSpace(c.FormValue("Body"))
	sid := c.FormValue("MessageSid")

	if body == "" {
		atomic.AddInt64(&h.metrics.Ignored, 1)
		return sendTwiML(c, "")
	}

	ctx := c.UserContext()

	if h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, sid)
		if err != nil {
			h.log.Warn().Err(err).Str("sid", sid).Msg("dedup check failed, processing anyway")
		}
		if !first {
			atomic.AddInt64(&h.metrics.Duplicates, 1)
			h.log.Debug().Str("sid", sid).Msg("duplicate delivery ignored")
			return sendTwiML(c, "")
		}
	}

	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(ctx, domain.NormalizeIdentity(from)); !ok {
			atomic.AddInt64(&h.metrics.Limited, 1)
			h.log.Warn().Str("from", from).Dur("retry_after", retryAfter).Msg("sender rate limited")
			return sendTwiML(c, "")
		}
	}

	result, err := h.triage.HandleInbound(ctx, body, from)
	if err != nil {
		if errors.Is(err, triage.ErrEmptySender) {
			return apperr.MissingField("From")
		}
		return apperr.InternalWithError(err)
	}

	atomic.AddInt64(&h.metrics.Processed, 1)
	return sendTwiML(c, result.ReplyText)
}

// sendTwiML writes a TwiML document. An empty message yields <Response/>, which Twilio
// treats as "no reply".
func sendTwiML(c *fiber.Ctx, message string) error {
	doc := twiml{}
	if message != "" {
		doc.Message = &message
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return apperr.InternalWithError(err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(append([]byte(xml.Header), out...))
}
