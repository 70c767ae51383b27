package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/KentoBaguetti/cournot-game-backend/internal/auth"
	"github.com/KentoBaguetti/cournot-game-backend/internal/coordinator"
	"github.com/KentoBaguetti/cournot-game-backend/internal/game"
	"github.com/KentoBaguetti/cournot-game-backend/pkg/types"
)

// CreateGame is the REST bootstrap for hosts: it mints a join code and
// registers the instance before the host's websocket attaches.
func CreateGame(verifier auth.Verifier, coord *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identityFrom(verifier, r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var body types.CreateGamePayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		code, err := coord.CreateGame(id, body.GameType, body.GameConfigs)
		if err != nil {
			if errors.Is(err, game.ErrUnknownGameType) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error("create game", zap.Error(err))
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(types.GameCreatedPayload{RoomID: code})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func identityFrom(verifier auth.Verifier, r *http.Request) (auth.Identity, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return verifier.Verify(token)
}
