package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// auth.go - токенная защита мутирующих admin маршрутов
//
// Читающие маршруты открыты; запись (blacklist, settings, positions)
// требует Authorization: Bearer <token>. Пустой токен в конфигурации
// выключает проверку - режим локального развертывания.

// RequireAuth оборачивает handler проверкой bearer токена
func RequireAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := bearerToken(r)
		if provided == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение против timing атак
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
