package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/laughstock/market-engine/internal/auth"
)

type fakeVerifier struct {
	users map[string]string
}

func (v fakeVerifier) VerifyAccessToken(_ context.Context, token string) (string, error) {
	if id, ok := v.users[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func newProtected(v auth.Verifier) http.Handler {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.UserID(r.Context())))
	})
	return auth.Middleware(v)(echo)
}

func TestMiddleware_MissingToken(t *testing.T) {
	h := newProtected(fakeVerifier{})

	for _, header := range []string{"", "Bearer ", "Token abc"} {
		req := httptest.NewRequest("POST", "/buy", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	h := newProtected(fakeVerifier{users: map[string]string{"good": "user1"}})

	req := httptest.NewRequest("POST", "/buy", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unverifiable token, got %d", w.Code)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	h := newProtected(fakeVerifier{users: map[string]string{"good": "user1"}})

	req := httptest.NewRequest("POST", "/buy", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "user1" {
		t.Errorf("expected user id in context, got %q", w.Body.String())
	}
}
