package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/store"
)

func (d *Dependencies) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	var req CreateClientReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	client, apiKey, err := d.Store.CreateClient(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("failed to create client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create client"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateClientResp{
		ID:           client.ID,
		Name:         client.Name,
		APIKey:       apiKey,
		APIKeyPrefix: client.APIKeyPrefix,
		Mode:         client.Mode,
		CreatedAt:    client.CreatedAt,
	})
}

func (d *Dependencies) handleListClients(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	clients, err := d.Store.ListClients(r.Context())
	if err != nil {
		d.Logger.Error("failed to list clients", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list clients"})
		return
	}

	out := make([]ClientResp, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientToResp(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dependencies) handleGetClient(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	client, err := d.Store.GetClient(r.Context(), r.PathValue("client_id"))
	if err != nil {
		d.Logger.Error("failed to get client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get client"})
		return
	}
	if client == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found."})
		return
	}

	writeJSON(w, http.StatusOK, clientToResp(client))
}

func (d *Dependencies) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	var req UpdateClientReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Mode != nil && *req.Mode != "enforce" && *req.Mode != "shadow" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "mode must be 'enforce' or 'shadow'"})
		return
	}

	client, err := d.Store.UpdateClient(r.Context(), r.PathValue("client_id"), store.UpdateClientParams{
		Name: req.Name,
		Mode: req.Mode,
	})
	if err != nil {
		d.Logger.Error("failed to update client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update client"})
		return
	}
	if client == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found."})
		return
	}

	writeJSON(w, http.StatusOK, clientToResp(client))
}

func (d *Dependencies) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	err := d.Store.DeleteClient(r.Context(), r.PathValue("client_id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete client"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	client, apiKey, err := d.Store.RotateAPIKey(r.Context(), r.PathValue("client_id"))
	if err != nil {
		d.Logger.Error("failed to rotate API key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate API key"})
		return
	}

	writeJSON(w, http.StatusOK, RotateKeyResp{
		APIKey:       apiKey,
		APIKeyPrefix: client.APIKeyPrefix,
	})
}

func (d *Dependencies) handleUpdateDetectorConfig(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	var req UpdateDetectorConfigReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	client, err := d.Store.UpdateDetectorConfig(r.Context(), r.PathValue("client_id"), req.DetectorConfig)
	if err != nil {
		d.Logger.Error("failed to update detector config", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update detector config"})
		return
	}
	if client == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found."})
		return
	}

	writeJSON(w, http.StatusOK, clientToResp(client))
}

func clientToResp(c *store.Client) ClientResp {
	return ClientResp{
		ID:             c.ID,
		Name:           c.Name,
		APIKeyPrefix:   c.APIKeyPrefix,
		Mode:           c.Mode,
		DetectorConfig: c.DetectorConfig,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
