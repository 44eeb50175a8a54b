package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"parkshare/internal/parkings/service"
	"parkshare/pkg/credits"
	apperrors "parkshare/pkg/errors"
	httputil "parkshare/pkg/http"
	"parkshare/pkg/logger"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
)

type ParkingRequest struct {
	Name            string `json:"name" validate:"required,notblank,max=50"`
	Address         string `json:"address" validate:"required,notblank,max=100"`
	MaxSpots        int    `json:"max_spots" validate:"gte=1"`
	IsNeighbourhood bool   `json:"is_neighbourhood"`
}

func (r ParkingRequest) info() model.ParkingInfo {
	return model.ParkingInfo{
		Name:            r.Name,
		Address:         r.Address,
		MaxSpots:        r.MaxSpots,
		IsNeighbourhood: r.IsNeighbourhood,
	}
}

type TransferRequest struct {
	NewOwnerID string `json:"new_owner_id" validate:"required,notblank"`
}

type JoinRequest struct {
	Code string `json:"code" validate:"required,notblank"`
}

type BookingRequestPayload struct {
	From  time.Time        `json:"from" validate:"required"`
	To    time.Time        `json:"to" validate:"required"`
	Bonus *credits.Credits `json:"bonus,omitempty"`
}

type ParkingHandler struct {
	service service.ParkingService
	log     *logger.Logger
}

func NewParkingHandler(service service.ParkingService, log *logger.Logger) *ParkingHandler {
	return &ParkingHandler{
		service: service,
		log:     log,
	}
}

func (h *ParkingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ParkingRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	p, err := h.service.Create(r.Context(), middleware.UserID(r.Context()), req.info())
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, p); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ParkingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.service.GetByID(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, p); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	parkings, total, err := h.service.ListMine(r.Context(), middleware.UserID(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, parkings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *ParkingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req ParkingRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	p, err := h.service.EditInfo(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.info())
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, p); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), middleware.UserID(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ParkingHandler) Transfer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req TransferRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Transfer", err)
		return
	}

	p, err := h.service.TransferOwnership(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.NewOwnerID)
	if err != nil {
		h.writeError(w, "Transfer", err)
		return
	}

	if err := httputil.WriteSuccess(w, p); err != nil {
		h.log.Error("failed to write success response", "handler", "Transfer", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) Join(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req JoinRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "Join", err)
		return
	}

	p, err := h.service.Join(r.Context(), middleware.UserID(r.Context()), req.Code)
	if err != nil {
		h.writeError(w, "Join", err)
		return
	}

	if err := httputil.WriteSuccess(w, p); err != nil {
		h.log.Error("failed to write success response", "handler", "Join", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) Leave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Leave(r.Context(), middleware.UserID(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Leave", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ParkingHandler) CreateRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req BookingRequestPayload
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, "CreateRequest", err)
		return
	}
	bonus := credits.Zero
	if req.Bonus != nil {
		bonus = *req.Bonus
	}

	created, err := h.service.RequestBooking(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), req.From, req.To, bonus)
	if err != nil {
		h.writeError(w, "CreateRequest", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateRequest", "operation", "WriteCreated", "error", err)
	}
}

// ListRequests answers ?scope=mine (default) with the caller's own requests and
// ?scope=open with those the caller could accept.
func (h *ParkingHandler) ListRequests(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := middleware.UserID(r.Context())

	var (
		requests []model.ParkingBookingRequest
		err      error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "mine":
		requests, err = h.service.MyRequests(r.Context(), userID, ps.ByName("id"))
	case "open":
		requests, err = h.service.OpenRequests(r.Context(), userID, ps.ByName("id"))
	default:
		err = apperrors.InvalidInput("invalid scope parameter: " + scope)
	}
	if err != nil {
		h.writeError(w, "ListRequests", err)
		return
	}

	if err := httputil.WriteSuccess(w, requests); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRequests", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) AcceptRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	accepted, err := h.service.AcceptRequest(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), ps.ByName("requestId"))
	if err != nil {
		h.writeError(w, "AcceptRequest", err)
		return
	}

	if err := httputil.WriteSuccess(w, accepted); err != nil {
		h.log.Error("failed to write success response", "handler", "AcceptRequest", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) CancelRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.CancelRequest(r.Context(), middleware.UserID(r.Context()), ps.ByName("id"), ps.ByName("requestId")); err != nil {
		h.writeError(w, "CancelRequest", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ParkingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ParkingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/parkings", h.Create)
	router.GET("/api/v1/parkings", h.ListMine)
	router.GET("/api/v1/parkings/:id", h.GetByID)
	router.PUT("/api/v1/parkings/:id", h.Update)
	router.DELETE("/api/v1/parkings/:id", h.Delete)
	router.POST("/api/v1/parkings/:id/transfer", h.Transfer)
	router.POST("/api/v1/parkings/:id/leave", h.Leave)
	router.POST("/api/v1/memberships", h.Join)

	router.POST("/api/v1/parkings/:id/requests", h.CreateRequest)
	router.GET("/api/v1/parkings/:id/requests", h.ListRequests)
	router.POST("/api/v1/parkings/:id/requests/:requestId/accept", h.AcceptRequest)
	router.DELETE("/api/v1/parkings/:id/requests/:requestId", h.CancelRequest)
}
