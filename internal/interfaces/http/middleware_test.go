package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func signatureRouter(appSecret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware("jwt-secret", appSecret)
	r := gin.New()
	r.POST("/webhook", m.SignatureRequired(), func(c *gin.Context) {
		// The body must survive verification intact.
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureRequired(t *testing.T) {
	const body = `{"object":"whatsapp_business_account"}`

	t.Run("valid signature passes with body intact", func(t *testing.T) {
		r := signatureRouter("app-secret")
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("code = %d", w.Code)
		}
		if w.Body.String() != body {
			t.Errorf("handler saw body %q", w.Body.String())
		}
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		r := signatureRouter("app-secret")
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", sign("other-secret", body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("code = %d", w.Code)
		}
	})

	t.Run("tampered body is rejected", func(t *testing.T) {
		r := signatureRouter("app-secret")
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body+" "))
		req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("code = %d", w.Code)
		}
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		r := signatureRouter("app-secret")
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("code = %d", w.Code)
		}
	})

	t.Run("no configured secret skips verification", func(t *testing.T) {
		r := signatureRouter("")
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("code = %d", w.Code)
		}
	})
}
