package httpx

import (
	"context"
	"net/http"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// Доверенные заголовки от внешнего auth-слоя. Ядро не проверяет пароли и
// сессии: fronting-прокси аутентифицирует пользователя и проставляет их.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

type identityCtxKey struct{}

// WithIdentity — middleware, извлекающий Identity из доверенных заголовков.
// Отсутствие заголовков даёт пустую Identity; авторизацию решают сервисы.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := domain.Identity{
			ID:    r.Header.Get(HeaderUserID),
			Email: r.Header.Get(HeaderUserEmail),
			Name:  r.Header.Get(HeaderUserName),
			Role:  domain.Role(r.Header.Get(HeaderUserRole)),
		}
		if identity.Authenticated() && identity.Role == "" {
			identity.Role = domain.RoleCustomer
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom достаёт Identity запроса из контекста.
func IdentityFrom(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(identityCtxKey{}).(domain.Identity)
	return identity
}
