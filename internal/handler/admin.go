package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/campusbot/internal/broadcast"
	"github.com/jmerrifield20/campusbot/internal/identity"
	"github.com/jmerrifield20/campusbot/internal/studia"
	"github.com/jmerrifield20/campusbot/internal/template"
	"github.com/jmerrifield20/campusbot/internal/users"
	"go.uber.org/zap"
)

type adminLookup interface {
	GetByFacebookID(ctx context.Context, facebookID string) (*users.User, error)
}

type broadcastRunner interface {
	Run(ctx context.Context, admin *users.User, cmd *template.Command) (*broadcast.Result, error)
}

type studiaService interface {
	Sessions(ctx context.Context) ([]*studia.Session, error)
	Login(ctx context.Context, programID int64, password string) (*studia.Session, error)
}

// AdminHandler serves the administrative routes: token exchange, the
// internal broadcast trigger and the Studia3 session form.
type AdminHandler struct {
	tokens       *identity.TokenIssuer // nil disables token auth on admin routes
	passwordHash string
	users        adminLookup
	bcast        broadcastRunner
	studia       studiaService
	spawn        func(func())
	logger       *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(tokens *identity.TokenIssuer, passwordHash string, ul adminLookup, b broadcastRunner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		tokens:       tokens,
		passwordHash: passwordHash,
		users:        ul,
		bcast:        b,
		spawn:        func(fn func()) { go fn() },
		logger:       logger,
	}
}

// SetStudia enables the /studia form.
func (h *AdminHandler) SetStudia(s studiaService) { h.studia = s }

// SetSpawn replaces how broadcasts are started. Tests run them inline.
func (h *AdminHandler) SetSpawn(fn func(func())) { h.spawn = fn }

// requireAdmin returns the RequireAdmin middleware when tokens are
// configured, or a no-op middleware otherwise.
func (h *AdminHandler) requireAdmin() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireAdmin(h.tokens)
}

// Register mounts the admin routes.
func (h *AdminHandler) Register(r gin.IRouter) {
	if h.tokens != nil {
		r.POST("/admin/token", h.IssueToken)
	}
	r.POST("/internal/broadcast", sameHostOnly(), h.requireAdmin(), h.Broadcast)
	if h.studia != nil {
		r.GET("/studia", h.requireAdmin(), h.StudiaForm)
		r.POST("/studia", h.requireAdmin(), h.StudiaLogin)
	}
}

// sameHostOnly rejects requests that passed through a reverse proxy.
func sameHostOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Forwarded-For") != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// ── Token ─────────────────────────────────────────────────────────────────

type tokenRequest struct {
	Password string `json:"password" binding:"required"`
}

// IssueToken handles POST /admin/token.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := identity.CheckPassword(h.passwordHash, req.Password); err != nil {
		h.logger.Warn("admin token refused", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.tokens.IssueAdmin("admin")
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ── Broadcast ─────────────────────────────────────────────────────────────

type broadcastRequest struct {
	Text string `json:"text" binding:"required"`
	// AdminPSID names the admin who is excluded from the broadcast and
	// receives the summary.
	AdminPSID string `json:"admin_psid" binding:"required"`
}

// Broadcast handles POST /internal/broadcast. The command is validated
// synchronously and sent in the background.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := template.Parse(req.Text)
	if cmd == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or missing @target"})
		return
	}
	if strings.TrimSpace(cmd.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": broadcast.ErrEmptyBody.Error()})
		return
	}

	admin, err := h.users.GetByFacebookID(c.Request.Context(), req.AdminPSID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
		return
	case err != nil:
		h.logger.Error("lookup broadcast admin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	case !admin.IsAdmin:
		c.JSON(http.StatusForbidden, gin.H{"error": "user is not an admin"})
		return
	}

	h.spawn(func() {
		if _, err := h.bcast.Run(context.Background(), admin, cmd); err != nil {
			h.logger.Error("internal broadcast failed", zap.Error(err))
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "target": cmd.Target.Kind})
}

// ── Studia3 ───────────────────────────────────────────────────────────────

// StudiaForm handles GET /studia.
func (h *AdminHandler) StudiaForm(c *gin.Context) {
	h.renderStudia(c, http.StatusOK, "")
}

// StudiaLogin handles POST /studia with program_id and password form fields.
func (h *AdminHandler) StudiaLogin(c *gin.Context) {
	programID, err := strconv.ParseInt(c.PostForm("program_id"), 10, 64)
	if err != nil {
		h.renderStudia(c, http.StatusBadRequest, "Invalid program.")
		return
	}

	sess, err := h.studia.Login(c.Request.Context(), programID, c.PostForm("password"))
	switch {
	case errors.Is(err, studia.ErrNotFound):
		h.renderStudia(c, http.StatusNotFound, "Unknown program.")
	case errors.Is(err, studia.ErrLoginFailed):
		h.renderStudia(c, http.StatusUnauthorized, "Login failed.")
	case err != nil:
		h.logger.Error("studia login", zap.Error(err))
		h.renderStudia(c, http.StatusBadGateway, "Studia3 is unavailable.")
	default:
		h.renderStudia(c, http.StatusOK, "Logged in to "+sess.ProgramName+".")
	}
}

func (h *AdminHandler) renderStudia(c *gin.Context, status int, msg string) {
	sessions, err := h.studia.Sessions(c.Request.Context())
	if err != nil {
		h.logger.Error("list studia sessions", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	action := "/studia"
	if tok := c.Query("token"); tok != "" {
		action += "?" + url.Values{"token": {tok}}.Encode()
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	page := studia.Page{Sessions: sessions, Action: action, Message: msg}
	if err := page.Render(c.Writer); err != nil {
		h.logger.Error("render studia page", zap.Error(err))
	}
}
