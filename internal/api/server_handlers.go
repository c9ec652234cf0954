package api

import (
	"net/http"

	"get5-api/internal/model"
)

func (r *Router) handleListPublicServers(w http.ResponseWriter, req *http.Request) {
	servers, err := r.deps.Servers.ListPublic(req.Context())
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (r *Router) handleListMyServers(w http.ResponseWriter, req *http.Request) {
	p, _ := principalFrom(req.Context())
	servers, err := r.deps.Servers.ListMine(req.Context(), p)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (r *Router) handleGetServer(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "server_id")
	if err != nil {
		writeError(w, req, err)
		return
	}
	p, _ := principalFrom(req.Context())
	server, err := r.deps.Servers.Get(req.Context(), p, id)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, server)
}

func (r *Router) handleCreateServer(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.GameServerInput](req)
	if err != nil {
		writeError(w, req, err)
		return
	}

	var principal *model.Principal
	if p, ok := principalFrom(req.Context()); ok {
		principal = &p
	}
	id, err := r.deps.Servers.Create(req.Context(), principal, in)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Game server inserted successfully!", ID: id})
}

func (r *Router) handleUpdateServer(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.GameServerInput](req)
	if err != nil {
		writeError(w, req, err)
		return
	}
	p, _ := principalFrom(req.Context())
	if err := r.deps.Servers.Update(req.Context(), p, in); err != nil {
		writeError(w, req, err)
		return
	}
	writeMessage(w, http.StatusOK, "Game server updated successfully!")
}

func (r *Router) handleDeleteServer(w http.ResponseWriter, req *http.Request) {
	in, err := decodePayload[model.ServerDeleteInput](req)
	if err != nil {
		writeError(w, req, err)
		return
	}
	p, _ := principalFrom(req.Context())
	if err := r.deps.Servers.Delete(req.Context(), p, in); err != nil {
		writeError(w, req, err)
		return
	}
	writeMessage(w, http.StatusOK, "Game server deleted successfully!")
}
