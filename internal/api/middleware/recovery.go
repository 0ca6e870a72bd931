package middleware

import (
	"net/http"
	"runtime/debug"

	"spreadwatch/pkg/utils"
)

// recovery.go - перехват паники в handlers

// Recovery перехватывает panic, логирует stack trace и отдает 500.
// Упавший handler не роняет процесс.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.L().Error("panic in http handler",
					utils.Any("panic", err),
					utils.String("path", r.URL.Path),
					utils.String("stack", string(debug.Stack())))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
