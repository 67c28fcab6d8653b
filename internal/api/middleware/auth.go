// auth.go — Basic auth middleware для мутирующих endpoints.
// Единственная статическая пара (username, password) из конфигурации;
// сравнение выполняется за константное время через crypto/subtle.
// Публичные endpoints (галерея, выдача, health, metrics) — без аутентификации.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
)

// authRealm — значение realm в challenge-заголовке WWW-Authenticate.
const authRealm = `Basic realm="Uploader"`

// BasicAuth — middleware аутентификации по статической паре учётных данных.
type BasicAuth struct {
	userHash [32]byte
	passHash [32]byte
	logger   *slog.Logger
}

// NewBasicAuth создаёт Basic auth middleware для пары (user, password).
// Хранятся SHA-256 хэши, чтобы сравнение было за константное время
// независимо от длины присланных значений.
func NewBasicAuth(user, password string, logger *slog.Logger) *BasicAuth {
	return &BasicAuth{
		userHash: sha256.Sum256([]byte(user)),
		passHash: sha256.Sum256([]byte(password)),
		logger:   logger.With(slog.String("component", "basic_auth")),
	}
}

// Middleware возвращает HTTP middleware для Basic-аутентификации.
// Отсутствующий или малформленный заголовок → 401 с challenge,
// несовпадающая пара → 401 с challenge. Троттлинга попыток нет.
func (a *BasicAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", authRealm)
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			if !a.Verify(user, password) {
				a.logger.Warn("Неверные учётные данные",
					slog.String("user", user),
					slog.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", authRealm)
				apierrors.Unauthorized(w, "Неверные учётные данные")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Verify сравнивает пару (user, password) с настроенной за константное время.
func (a *BasicAuth) Verify(user, password string) bool {
	uh := sha256.Sum256([]byte(user))
	ph := sha256.Sum256([]byte(password))

	userOK := subtle.ConstantTimeCompare(uh[:], a.userHash[:]) == 1
	passOK := subtle.ConstantTimeCompare(ph[:], a.passHash[:]) == 1
	return userOK && passOK
}
