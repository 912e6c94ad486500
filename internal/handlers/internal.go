package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/services"
)

// InternalHandlers serves scheduler-triggered maintenance jobs.
type InternalHandlers struct {
	maintenance services.MaintenanceService
}

// NewInternalHandlers constructs the /internal handlers.
func NewInternalHandlers(maintenance services.MaintenanceService) *InternalHandlers {
	return &InternalHandlers{maintenance: maintenance}
}

// Routes registers the /internal endpoints. OIDC is applied by the router group.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/sweep-cancelled", h.sweepCancelled)
}

func (h *InternalHandlers) sweepCancelled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maintenance == nil {
		serviceUnavailable(ctx, w, "maintenance")
		return
	}
	result, err := h.maintenance.SweepCancelledOrders(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	caller := ""
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		caller = identity.Email
	}
	observability.FromContext(ctx).Info("cancelled order sweep",
		zap.Int("removed", result.Removed),
		zap.Time("cutoff", result.Cutoff),
		zap.String("caller", caller),
	)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"removed": result.Removed,
		"cutoff":  formatTime(result.Cutoff),
	})
}
