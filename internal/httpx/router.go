package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// RouterDeps — обработчики, которые монтирует основной роутер.
type RouterDeps struct {
	Orders  *OrdersHandler
	Catalog *CatalogHandler
	Payment *PaymentHandler
	Health  http.Handler
	Ready   http.HandlerFunc
	Logger  *log.Entry
}

// NewRouter собирает основной HTTP-роутер сервиса.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(WithIdentity)

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
		r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	if deps.Ready != nil {
		r.Get("/readyz", deps.Ready)
	}

	if deps.Orders != nil {
		deps.Orders.Register(r)
	}
	if deps.Catalog != nil {
		deps.Catalog.Register(r)
	}
	if deps.Payment != nil {
		deps.Payment.Register(r)
	}
	return r
}
