package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"quizboard-service/internal/game"
)

// NewQuizListHandler serves the quiz picker the gamemaster starts games from.
func NewQuizListHandler(quizzes game.QuizRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := quizzes.ListQuizzes(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list quizzes")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(list); err != nil {
			log.Debug().Err(err).Msg("failed to encode quiz list")
		}
	}
}
