package identity_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmerrifield20/campusbot/internal/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testIssuer = "https://bot.example.com"

func newIssuer(t *testing.T, ttl time.Duration) *identity.TokenIssuer {
	t.Helper()
	ti, err := identity.NewTokenIssuer([]byte("test-secret"), testIssuer, ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

// ── TokenIssuer ───────────────────────────────────────────────────────────

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	token, err := ti.IssueAdmin("ops")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != identity.RoleAdmin || claims.Issuer != testIssuer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	ti := newIssuer(t, time.Nanosecond)
	token, err := ti.IssueAdmin("ops")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := ti.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokenIssuer_RejectsOtherSecretAndIssuer(t *testing.T) {
	token, err := newIssuer(t, time.Hour).IssueAdmin("ops")
	if err != nil {
		t.Fatal(err)
	}

	other, _ := identity.NewTokenIssuer([]byte("another-secret"), testIssuer, time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Error("token verified with the wrong secret")
	}
	foreign, _ := identity.NewTokenIssuer([]byte("test-secret"), "https://elsewhere", time.Hour)
	if _, err := foreign.Verify(token); err == nil {
		t.Error("token verified with the wrong issuer")
	}
}

func TestTokenIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: identity.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newIssuer(t, time.Hour).Verify(token); err == nil {
		t.Error("unsigned token accepted")
	}
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	if _, err := identity.NewTokenIssuer(nil, testIssuer, 0); !errors.Is(err, identity.ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}
}

// ── Passwords ─────────────────────────────────────────────────────────────

func TestPasswords(t *testing.T) {
	hash, err := identity.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := identity.CheckPassword(hash, "hunter2"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := identity.CheckPassword(hash, "hunter3"); !errors.Is(err, identity.ErrBadCredentials) {
		t.Errorf("CheckPassword(wrong) = %v", err)
	}
	if err := identity.CheckPassword("", "anything"); !errors.Is(err, identity.ErrBadCredentials) {
		t.Errorf("CheckPassword(no hash) = %v", err)
	}
	if _, err := identity.HashPassword(""); err == nil {
		t.Error("expected error for an empty password")
	}
}

// ── RequireAdmin ──────────────────────────────────────────────────────────

func newAdminRouter(ti *identity.TokenIssuer) *gin.Engine {
	r := gin.New()
	r.GET("/admin", identity.RequireAdmin(ti), func(c *gin.Context) {
		c.String(http.StatusOK, identity.ClaimsFromCtx(c).Subject)
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	token, _ := ti.IssueAdmin("ops")
	r := newAdminRouter(ti)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/admin", "", http.StatusUnauthorized},
		{"garbage", "/admin", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/admin", "Basic " + token, http.StatusUnauthorized},
		{"header", "/admin", "Bearer " + token, http.StatusOK},
		{"query", "/admin?token=" + token, "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusOK && w.Body.String() != "ops" {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}

func TestRequireAdmin_RejectsNonAdminRole(t *testing.T) {
	claims := identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "viewer",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAdminRouter(newIssuer(t, time.Hour)).ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
