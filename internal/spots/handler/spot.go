package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"parkshare/internal/spots/service"
	httputil "parkshare/pkg/http"
	"parkshare/pkg/logger"
	"parkshare/pkg/middleware"
	"parkshare/pkg/rating"
)

type CreateSpotRequest struct {
	ParkingID string `json:"parking_id" validate:"required,notblank"`
	Name      string `json:"name" validate:"required,notblank,max=50"`
}

type RenameSpotRequest struct {
	Name string `json:"name" validate:"required,notblank,max=50"`
}

type AvailabilityRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

type BookRequest struct {
	From            time.Time `json:"from" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=1"`
}

type RateRequest struct {
	Rating string `json:"rating" validate:"required,oneof=good bad neutral"`
}

type SpotHandler struct {
	service service.SpotService
	log     *logger.Logger
}

func NewSpotHandler(service service.SpotService, log *logger.Logger) *SpotHandler {
	return &SpotHandler{
		service: service,
		log:     log,
	}
}

func (h *SpotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreateSpotRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	spot, err := h.service.Create(r.Context(), middleware.UserID(r.Context()), req.ParkingID, req.Name)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, spot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SpotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	spot, err := h.service.Get(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, spot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) ListByParking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByParking", err)
		return
	}

	spots, total, err := h.service.List(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByParking", err)
		return
	}

	if err := httputil.WritePaginated(w, spots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByParking", "operation", "WritePaginated", "error", err)
	}
}

func (h *SpotHandler) Rename(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req RenameSpotRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Rename", err)
		return
	}

	spot, err := h.service.Rename(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.Name)
	if err != nil {
		h.writeError(w, "Rename", err)
		return
	}

	if err := httputil.WriteSuccess(w, spot); err != nil {
		h.log.Error("failed to write success response", "handler", "Rename", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) Disable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	spot, err := h.service.Disable(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Disable", err)
		return
	}

	if err := httputil.WriteSuccess(w, spot); err != nil {
		h.log.Error("failed to write success response", "handler", "Disable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) Enable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	spot, err := h.service.Enable(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Enable", err)
		return
	}

	if err := httputil.WriteSuccess(w, spot); err != nil {
		h.log.Error("failed to write success response", "handler", "Enable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), middleware.UserID(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *SpotHandler) MakeAvailable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req AvailabilityRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "MakeAvailable", err)
		return
	}

	availability, err := h.service.MakeAvailable(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.From, req.To)
	if err != nil {
		h.writeError(w, "MakeAvailable", err)
		return
	}

	if err := httputil.WriteCreated(w, availability); err != nil {
		h.log.Error("failed to write created response", "handler", "MakeAvailable", "operation", "WriteCreated", "error", err)
	}
}

func (h *SpotHandler) CancelAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := h.service.CancelAvailability(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), ps.ByName("availabilityId"))
	if err != nil {
		h.writeError(w, "CancelAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CancelAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) FreeWindows(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	windows, err := h.service.FreeWindows(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "FreeWindows", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "FreeWindows", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) Book(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req BookRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	result, err := h.service.Book(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.From, duration)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *SpotHandler) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	cancelled, err := h.service.CancelBooking(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), ps.ByName("bookingId"))
	if err != nil {
		h.writeError(w, "CancelBooking", err)
		return
	}

	if err := httputil.WriteSuccess(w, cancelled); err != nil {
		h.log.Error("failed to write success response", "handler", "CancelBooking", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) RateBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req RateRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "RateBooking", err)
		return
	}
	outcome, err := rating.ParseOutcome(req.Rating)
	if err != nil {
		h.writeError(w, "RateBooking", err)
		return
	}

	rated, err := h.service.RateBooking(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), ps.ByName("bookingId"), outcome)
	if err != nil {
		h.writeError(w, "RateBooking", err)
		return
	}

	if err := httputil.WriteSuccess(w, rated); err != nil {
		h.log.Error("failed to write success response", "handler", "RateBooking", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) MyBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bookings, err := h.service.MyBookings(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "MyBookings", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "MyBookings", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SpotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/spots", h.Create)
	router.GET("/api/v1/parkings/:id/spots", h.ListByParking)
	router.GET("/api/v1/spots/:id", h.GetByID)
	router.PUT("/api/v1/spots/:id", h.Rename)
	router.DELETE("/api/v1/spots/:id", h.Delete)
	router.POST("/api/v1/spots/:id/disable", h.Disable)
	router.POST("/api/v1/spots/:id/enable", h.Enable)

	router.POST("/api/v1/spots/:id/availabilities", h.MakeAvailable)
	router.DELETE("/api/v1/spots/:id/availabilities/:availabilityId", h.CancelAvailability)
	router.GET("/api/v1/spots/:id/free-windows", h.FreeWindows)

	router.POST("/api/v1/spots/:id/bookings", h.Book)
	router.DELETE("/api/v1/spots/:id/bookings/:bookingId", h.CancelBooking)
	router.POST("/api/v1/spots/:id/bookings/:bookingId/rating", h.RateBooking)
	router.GET("/api/v1/bookings/me", h.MyBookings)
}
