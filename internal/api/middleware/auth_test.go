package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestAuth создаёт middleware с тестовой парой учётных данных.
func newTestAuth() *BasicAuth {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBasicAuth("admin", "secret", logger)
}

// protectedHandler — тестовый обработчик за middleware.
func protectedHandler(auth *BasicAuth) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return auth.Middleware()(next)
}

// TestMiddleware_NoCredentials проверяет запрос без заголовка Authorization:
// 401 с challenge-заголовком.
func TestMiddleware_NoCredentials(t *testing.T) {
	handler := protectedHandler(newTestAuth())

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != authRealm {
		t.Errorf("WWW-Authenticate: ожидалось %q, получено %q", authRealm, got)
	}
}

// TestMiddleware_WrongCredentials проверяет запрос с неверной парой.
func TestMiddleware_WrongCredentials(t *testing.T) {
	handler := protectedHandler(newTestAuth())

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("challenge-заголовок должен присутствовать при неверной паре")
	}
}

// TestMiddleware_ValidCredentials проверяет пропуск запроса с верной парой.
func TestMiddleware_ValidCredentials(t *testing.T) {
	handler := protectedHandler(newTestAuth())

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestVerify проверяет сравнение учётных данных.
func TestVerify(t *testing.T) {
	auth := newTestAuth()

	if !auth.Verify("admin", "secret") {
		t.Error("верная пара должна приниматься")
	}
	if auth.Verify("admin", "wrong") {
		t.Error("неверный пароль должен отклоняться")
	}
	if auth.Verify("wrong", "secret") {
		t.Error("неверный логин должен отклоняться")
	}
	if auth.Verify("", "") {
		t.Error("пустая пара должна отклоняться")
	}
}
