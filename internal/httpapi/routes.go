package httpapi

import (
	"net/http"

	"github.com/cosmic-arcade/arena-backend/internal/ws"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(s *ws.Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", s.Handler())
	r.Get("/healthz", Healthz)
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
