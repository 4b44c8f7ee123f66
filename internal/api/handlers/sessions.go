package handlers

import (
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/session"
)

type SessionHandler struct {
	store session.Store
}

func NewSessionHandler(store session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListByUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// NextID suggests the id for the caller's next session.
func (h *SessionHandler) NextID(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.CountByUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next_session_id": strconv.FormatInt(n+1, 10)})
}
