// Package handler exposes the bot's HTTP surface.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/campusbot/internal/webhook"
	"go.uber.org/zap"
)

type entryDispatcher interface {
	Dispatch(ctx context.Context, entry webhook.Entry) error
}

type deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
}

// WebhookHandler verifies the subscription and accepts event deliveries.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	dispatcher  entryDispatcher
	dedup       deduper
	spawn       func(func())
	logger      *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler. verifyToken is the shared
// secret echoed back during subscription.
func NewWebhookHandler(verifyToken string, d entryDispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		dispatcher:  d,
		spawn:       func(fn func()) { go fn() },
		logger:      logger,
	}
}

// SetAppSecret enables X-Hub-Signature-256 verification of deliveries.
func (h *WebhookHandler) SetAppSecret(secret string) { h.appSecret = secret }

// SetDeduper skips messages whose id was already handled.
func (h *WebhookHandler) SetDeduper(d deduper) { h.dedup = d }

// SetSpawn replaces how dispatches are started. Tests run them inline.
func (h *WebhookHandler) SetSpawn(fn func(func())) { h.spawn = fn }

// Register mounts the webhook routes at path.
func (h *WebhookHandler) Register(r gin.IRoutes, path string) {
	r.GET(path, h.Verify)
	r.POST(path, h.Receive)
}

// Verify handles GET <path>: the platform's subscription challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode == "" || token == "" {
		c.String(http.StatusBadRequest, "Invalid request")
		return
	}
	if mode != "subscribe" || token != h.verifyToken {
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	h.logger.Info("webhook verified")
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// Receive handles POST <path>. Entries are acknowledged before they are
// dispatched on their own goroutines with a detached context.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid request")
		return
	}

	if h.appSecret != "" {
		if err := webhook.VerifySignature(body, c.GetHeader(webhook.SignatureHeader), h.appSecret); err != nil {
			h.logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
			c.String(http.StatusForbidden, "Forbidden")
			return
		}
	}

	payload, err := webhook.Decode(body)
	if err != nil {
		// Acknowledged anyway: a rejected delivery would only be retried.
		h.logger.Warn("undecodable webhook delivery", zap.Error(err))
		RecordEvent("malformed", false)
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}
	if payload.Object != webhook.ObjectPage {
		c.Status(http.StatusNotFound)
		return
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")

	for _, entry := range payload.Entry {
		if h.duplicate(c.Request.Context(), entry) {
			continue
		}
		entry := entry
		h.spawn(func() {
			if err := h.dispatcher.Dispatch(context.Background(), entry); err != nil {
				level := h.logger.Error
				if errors.Is(err, webhook.ErrMalformedPayload) {
					level = h.logger.Warn
				}
				level("dispatch webhook entry", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		})
	}
}

// duplicate reports whether the entry's message id was handled before.
// Entries without a message id and lookup failures are never duplicates.
func (h *WebhookHandler) duplicate(ctx context.Context, entry webhook.Entry) bool {
	if h.dedup == nil || len(entry.Messaging) == 0 || entry.Messaging[0].Message == nil {
		return false
	}
	mid := entry.Messaging[0].Message.MID
	if mid == "" {
		return false
	}
	seen, err := h.dedup.Seen(ctx, mid)
	if err != nil {
		h.logger.Warn("dedup lookup failed", zap.String("mid", mid), zap.Error(err))
		return false
	}
	if seen {
		recordDuplicate()
		h.logger.Debug("duplicate delivery skipped", zap.String("mid", mid))
	}
	return seen
}
