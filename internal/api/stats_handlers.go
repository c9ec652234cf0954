package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"get5-api/internal/model"
	"get5-api/internal/service"
)

func (r *Router) handleListStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.deps.Stats.List(req.Context())
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *Router) handleListStatsBySteamID(w http.ResponseWriter, req *http.Request) {
	stats, err := r.deps.Stats.ListBySteamID(req.Context(), chi.URLParam(req, "steam_id"))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *Router) handleListStatsByMatch(w http.ResponseWriter, req *http.Request) {
	matchID, err := parseID(req, "match_id")
	if err != nil {
		writeError(w, req, err)
		return
	}
	stats, err := r.deps.Stats.ListByMatchID(req.Context(), matchID)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *Router) handleCreateStats(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.PlayerStatInput](req)
	if err != nil {
		writeError(w, req, err)
		return
	}
	id, err := r.deps.Stats.Create(req.Context(), in)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Player Stats inserted successfully!", ID: id})
}

func (r *Router) handleUpsertStats(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.PlayerStatInput](req)
	if err != nil {
		writeError(w, req, err)
		return
	}
	result, err := r.deps.Stats.Upsert(req.Context(), in)
	if err != nil {
		writeError(w, req, err)
		return
	}

	message := "Player Stats were updated successfully!"
	if result == service.UpsertInserted {
		message = "Player Stats Inserted Successfully!"
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: message, Result: result.String()})
}

func (r *Router) handleDeleteStats(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.StatDeleteInput](req)
	if err != nil {
		// The operation is unsupported whatever the body says.
		in = &model.StatDeleteInput{}
	}
	writeError(w, req, r.deps.Stats.Delete(req.Context(), in))
}
