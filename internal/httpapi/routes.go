package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/internal/auth"
	"github.com/KentoBaguetti/cournot-game-backend/internal/coordinator"
	"github.com/KentoBaguetti/cournot-game-backend/internal/ws"
)

func SetupRoutes(verifier auth.Verifier, coord *coordinator.Coordinator, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/games", CreateGame(verifier, coord, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(verifier, coord, log))
	return r
}
