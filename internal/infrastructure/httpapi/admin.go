package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"archie-core-shopify-ingestion/internal/application"
	"archie-core-shopify-ingestion/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (a *api) listTenants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tenants": a.deps.Coordinator.Tenants()})
}

func (a *api) addTenant(w http.ResponseWriter, r *http.Request) {
	var input application.TenantInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cred, err := a.deps.Coordinator.AddTenant(r.Context(), input)
	if err != nil {
		a.fail(w, err, "Failed to add tenant")
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

func (a *api) removeTenant(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Coordinator.RemoveTenant(r.Context(), chi.URLParam(r, "tenantID")); err != nil {
		a.fail(w, err, "Failed to remove tenant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) tenantStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.deps.Coordinator.GetTenantSyncStatus(chi.URLParam(r, "tenantID"))
	if err != nil {
		a.fail(w, err, "Failed to get tenant status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type importRequest struct {
	Resource string `json:"resource"`
	// Wait blocks until the import finishes and returns its results
	Wait bool `json:"wait"`
	domain.ImportOptions
}

// startImport runs a manual import, in the background unless wait is set
func (a *api) startImport(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	req := importRequest{Resource: string(domain.ResourceAll)}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	resource, err := domain.ParseResourceType(req.Resource)
	if err != nil {
		a.fail(w, err, "Invalid import resource")
		return
	}
	if _, err := a.deps.Coordinator.GetTenantSyncStatus(tenantID); err != nil {
		a.fail(w, err, "Failed to start import")
		return
	}

	if req.Wait {
		results, err := a.deps.Coordinator.ImportData(r.Context(), tenantID, resource, req.ImportOptions)
		if err != nil {
			a.fail(w, err, "Import failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	a.deps.Tasks.Go(func(ctx context.Context) {
		if _, err := a.deps.Coordinator.ImportData(ctx, tenantID, resource, req.ImportOptions); err != nil {
			a.logger.Error().Err(err).
				Str("tenantId", tenantID).
				Str("resource", string(resource)).
				Msg("Background import failed")
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"tenant_id": tenantID,
		"resource":  resource,
	})
}

func (a *api) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Coordinator.GetSyncStatus())
}

func (a *api) healthStatus(w http.ResponseWriter, r *http.Request) {
	st := a.deps.Coordinator.GetHealthStatus()
	status := http.StatusOK
	if !st.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

func (a *api) listJobs(w http.ResponseWriter, r *http.Request) {
	if tenantID := r.URL.Query().Get("tenant"); tenantID != "" {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": a.deps.Jobs.JobsByTenant(tenantID)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": a.deps.Jobs.Jobs()})
}

func (a *api) getJob(w http.ResponseWriter, r *http.Request) {
	info, err := a.deps.Jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, err, "Failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *api) enableJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, a.deps.Jobs.Enable)
}

func (a *api) disableJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, a.deps.Jobs.Disable)
}

func (a *api) triggerJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, a.deps.Jobs.Trigger)
}

func (a *api) jobAction(w http.ResponseWriter, r *http.Request, action func(id string) error) {
	id := chi.URLParam(r, "jobID")
	if err := action(id); err != nil {
		a.fail(w, err, "Job action failed")
		return
	}
	info, err := a.deps.Jobs.Get(id)
	if err != nil {
		a.fail(w, err, "Failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// fail writes err as a response; server-side failures are logged and hidden from the caller
func (a *api) fail(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Msg(msg)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
