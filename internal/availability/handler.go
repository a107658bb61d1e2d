package availability

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	httputil "docslot/pkg/http"
	"docslot/pkg/logger"
	"docslot/pkg/model"
)

type Projection interface {
	Project(ctx context.Context, doctorID, from, to string, service model.ServiceKind) ([]model.DayAvailability, error)
}

type Handler struct {
	projector Projection
	log       *logger.Logger
}

func NewHandler(projector Projection, log *logger.Logger) *Handler {
	return &Handler{
		projector: projector,
		log:       log,
	}
}

// Get serves GET /api/v1/doctors/:id/availability?from=YYYY-MM-DD&to=YYYY-MM-DD&service=kind.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	days, err := h.projector.Project(r.Context(), ps.ByName("id"), query.Get("from"), query.Get("to"), model.ServiceKind(query.Get("service")))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAvailability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, days); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/doctors/:id/availability", h.Get)
}
