package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"docslot/internal/bookings/service"
	apperrors "docslot/pkg/errors"
	httputil "docslot/pkg/http"
	"docslot/pkg/logger"
	"docslot/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Create")
		return
	}

	booking, err := h.service.RequestBooking(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req model.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Transition")
		return
	}

	booking, err := h.service.TransitionBooking(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, "Transition", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Transition", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.list(w, r, "ListByDoctor", ps.ByName("doctor_id"), h.service.ListByDoctor)
}

func (h *BookingHandler) ListByPatient(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.list(w, r, "ListByPatient", ps.ByName("patient_id"), h.service.ListByPatient)
}

func (h *BookingHandler) DoctorStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	stats, err := h.service.DoctorStats(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "DoctorStats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "DoctorStats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	name, id string,
	fetch func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, int64, error),
) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	bookings, total, err := fetch(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) badRequest(w http.ResponseWriter, name string) {
	if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: "Invalid request body",
		Code:  apperrors.CodeInvalidInput,
	}); writeErr != nil {
		h.log.Error("failed to write JSON response", "handler", name, "operation", "WriteJSON", "error", writeErr)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/transitions", h.Transition)
	router.GET("/api/v1/bookings/doctor/:doctor_id", h.ListByDoctor)
	router.GET("/api/v1/bookings/patient/:patient_id", h.ListByPatient)
	router.GET("/api/v1/doctors/:id/stats", h.DoctorStats)
}
