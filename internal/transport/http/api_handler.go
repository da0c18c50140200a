package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quiz-ranking-service/internal/achievements"
	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/domain"
)

// APIHandler serves the read side: leaderboards and the caller's profile.
type APIHandler struct {
	service  *app.QuizService
	identity IdentityFunc
}

func NewAPIHandler(service *app.QuizService, identity IdentityFunc) *APIHandler {
	if identity == nil {
		identity = HeaderIdentity
	}
	return &APIHandler{service: service, identity: identity}
}

// Register mounts the JSON routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /leaderboard/global", h.globalLeaderboard)
	mux.HandleFunc("GET /leaderboard/category/{category}", h.categoryLeaderboard)
	mux.HandleFunc("GET /profile/me", h.withProfile(func(p domain.Profile) any { return p }))
	mux.HandleFunc("GET /profile/me/history", h.withProfile(func(p domain.Profile) any { return historyOf(p) }))
	mux.HandleFunc("GET /profile/me/achievements", h.withProfile(func(p domain.Profile) any { return achievementsOf(p) }))
}

func (h *APIHandler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Leaderboard(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *APIHandler) categoryLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Leaderboard(r.Context(), r.PathValue("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *APIHandler) withProfile(view func(domain.Profile) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := h.identity(r)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorPayload{Code: "unauthorized", Message: "missing user identity"})
			return
		}
		p, err := h.service.Profile(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view(p))
	}
}

func historyOf(p domain.Profile) []domain.HistoryEntry {
	if p.History == nil {
		return []domain.HistoryEntry{}
	}
	return p.History
}

// achievementsOf lists the whole catalog, marking what the user already earned.
func achievementsOf(p domain.Profile) []domain.Achievement {
	earned := make(map[string]domain.Achievement, len(p.Achievements))
	for _, a := range p.Achievements {
		earned[a.ID] = a
	}
	out := make([]domain.Achievement, 0, len(achievements.Catalog))
	for _, def := range achievements.Catalog {
		if a, ok := earned[def.ID]; ok {
			out = append(out, a)
			continue
		}
		out = append(out, domain.Achievement{ID: def.ID, Name: def.Name, Description: def.Description, Icon: def.Icon})
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	if status == http.StatusInternalServerError {
		log.Printf("api error: %v", err)
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
