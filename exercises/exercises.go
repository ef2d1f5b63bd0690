// Package exercises enables the exercises a user picked before a session.
// It is thin glue over one relational UPDATE.
package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"yogavision/log"

	"go.uber.org/zap"
)

const (
	Path = "/api/updateExercises"

	maxBody = 1 << 20
)

var ErrorNoExercises = errors.New("no exercises provided")

type Store interface {
	// Enable marks the named exercises enabled and user-selected and
	// returns the number of affected rows.
	Enable(ctx context.Context, names []string) (int64, error)
}

type Request struct {
	Exercises []string `json:"exercises"`
}

type Response struct {
	Message      string `json:"message"`
	AffectedRows *int64 `json:"affectedRows,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Handler struct {
	store Store
}

func NewHandler(s Store) *Handler {
	return &Handler{store: s}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, &Response{Message: "Method not allowed"})

		return
	}

	var req Request

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil || len(req.Exercises) == 0 {
		writeJSON(w, http.StatusBadRequest, &Response{Message: "No exercises provided"})

		return
	}

	n, err := h.store.Enable(r.Context(), req.Exercises)
	if err != nil {
		log.Error("ExercisesUpdate", zap.Strings("exercises", req.Exercises), zap.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, &Response{Message: "Database error", Error: err.Error()})

		return
	}

	log.Info("ExercisesUpdate", zap.Strings("exercises", req.Exercises), zap.Int64("affectedRows", n))
	writeJSON(w, http.StatusOK, &Response{Message: "Exercises updated", AffectedRows: &n})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("ExercisesWrite", zap.String("err", err.Error()))
	}
}
