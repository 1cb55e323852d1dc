package middleware

import (
	"crypto/subtle"
	"net/http"

	"sentinel/internal/config"
	"sentinel/pkg/crypto"
)

// BasicAuth - middleware для защиты API basic-аутентификацией
//
// Назначение:
// Закрывает API endpoints от неавторизованного доступа при развертывании
// монитора на общедоступном хосте.
//
// Конфигурация:
// - API_AUTH_USER: имя пользователя
// - API_AUTH_PASSWORD_HASH: bcrypt-хеш пароля (не сам пароль)
// - Если обе переменные пусты, аутентификация выключена и все
//   запросы проходят (локальное развертывание)
//
// Безопасность:
// - Имя пользователя сравнивается constant-time (subtle)
// - Пароль проверяется bcrypt-сравнением с хешем из конфигурации
// - В конфигурации и логах пароль в открытом виде не появляется
//
// Использование:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(middleware.BasicAuth(cfg.Security))
func BasicAuth(security config.SecurityConfig) func(http.Handler) http.Handler {
	enabled := security.APIUser != "" && security.APIPasswordHash != ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="sentinel"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(security.APIUser)) == 1
			passMatch := crypto.CheckPasswordMatch(pass, security.APIPasswordHash)

			if !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="sentinel"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
