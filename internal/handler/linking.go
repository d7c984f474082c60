package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/campusbot/internal/linking"
	"go.uber.org/zap"
)

type linkingService interface {
	Start(ctx context.Context, linkingToken, redirectURI string) (string, error)
	Complete(ctx context.Context, requestToken, verifier string) (string, error)
}

// LinkingHandler drives the browser side of USOS account linking.
type LinkingHandler struct {
	svc    linkingService
	logger *zap.Logger
}

// NewLinkingHandler creates a LinkingHandler.
func NewLinkingHandler(svc linkingService, logger *zap.Logger) *LinkingHandler {
	return &LinkingHandler{svc: svc, logger: logger}
}

// Register mounts the register and callback routes.
func (h *LinkingHandler) Register(r gin.IRoutes, registerPath, callbackPath string) {
	r.GET(registerPath, h.Start)
	r.GET(callbackPath, h.Callback)
}

// Start handles GET <register_path>?account_linking_token=&redirect_uri=,
// the target of the login button.
func (h *LinkingHandler) Start(c *gin.Context) {
	token := c.Query("account_linking_token")
	redirectURI := c.Query("redirect_uri")
	if token == "" || redirectURI == "" {
		c.String(http.StatusBadRequest, "account_linking_token and redirect_uri are required")
		return
	}

	authURL, err := h.svc.Start(c.Request.Context(), token, redirectURI)
	switch {
	case errors.Is(err, linking.ErrUnknownLinkingToken):
		// Without an authorization code the platform reports a failed link.
		c.Redirect(http.StatusFound, redirectURI)
		return
	case err != nil:
		h.logger.Error("start account linking", zap.Error(err))
		c.String(http.StatusBadGateway, "Could not reach USOS, please try again later.")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback handles GET <usos_callback_path>?oauth_token=&oauth_verifier=.
func (h *LinkingHandler) Callback(c *gin.Context) {
	token := c.Query("oauth_token")
	verifier := c.Query("oauth_verifier")
	if token == "" || verifier == "" {
		c.String(http.StatusBadRequest, "oauth_token and oauth_verifier are required")
		return
	}

	redirect, err := h.svc.Complete(c.Request.Context(), token, verifier)
	switch {
	case errors.Is(err, linking.ErrNotFound):
		c.String(http.StatusNotFound, "This login link has expired. Type \"login\" in Messenger to start again.")
		return
	case err != nil:
		h.logger.Error("complete account linking", zap.Error(err))
		c.String(http.StatusBadGateway, "Could not reach USOS, please try again later.")
		return
	}
	c.Redirect(http.StatusFound, redirect)
}
