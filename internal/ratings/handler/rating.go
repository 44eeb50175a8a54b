package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"parkshare/internal/ratings/service"
	httputil "parkshare/pkg/http"
	"parkshare/pkg/logger"
)

type RatingHandler struct {
	service service.RatingService
	log     *logger.Logger
}

func NewRatingHandler(service service.RatingService, log *logger.Logger) *RatingHandler {
	return &RatingHandler{
		service: service,
		log:     log,
	}
}

func (h *RatingHandler) GetByUserID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rep, err := h.service.Get(r.Context(), ps.ByName("userId"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByUserID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, rep); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByUserID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RatingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/ratings/:userId", h.GetByUserID)
}
