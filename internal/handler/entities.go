package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rocjay1/tax-analyzer/internal/models"
)

// HandleEntity handles GET and POST requests for a tenant's entity context.
func (d *Dependencies) HandleEntity(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if tenantID == "" {
		WriteError(w, http.StatusBadRequest, "Missing tenant")
		return
	}

	switch r.Method {
	case http.MethodGet:
		slog.Info("fetching entity context", "tenant_id", tenantID)
		entity, err := d.Entities.GetEntityContext(r.Context(), tenantID)
		if err != nil {
			slog.Error("failed to get entity context", "tenant_id", tenantID, "error", err)
			WriteServiceError(w, err)
			return
		}
		if entity == nil {
			WriteError(w, http.StatusNotFound, "No entity context stored")
			return
		}
		WriteJSON(w, http.StatusOK, entity)

	case http.MethodPost:
		var entity models.EntityContext
		if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
			slog.Warn("invalid entity context request body", "tenant_id", tenantID, "error", err)
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := entity.Validate(); err != nil {
			slog.Warn("rejected entity context", "tenant_id", tenantID, "error", err)
			WriteServiceError(w, err)
			return
		}

		if err := d.Entities.SaveEntityContext(r.Context(), tenantID, &entity); err != nil {
			slog.Error("failed to save entity context", "tenant_id", tenantID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Failed to save entity context")
			return
		}

		slog.Info("saved entity context", "tenant_id", tenantID, "entity_type", entity.Type())
		WriteJSON(w, http.StatusOK, entity)

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
