package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/campusbot/internal/handler"
)

func TestRateLimiter_PerClient(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := gin.New()
	r.Use(handler.RateLimiter(0.001, 2, done))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("192.0.2.1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, code)
		}
	}
	if code := hit("192.0.2.1"); code != http.StatusTooManyRequests {
		t.Errorf("burst exceeded: status = %d, want 429", code)
	}
	if code := hit("192.0.2.2"); code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", code)
	}
}
