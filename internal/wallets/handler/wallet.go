package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"parkshare/internal/wallets/service"
	"parkshare/pkg/credits"
	httputil "parkshare/pkg/http"
	"parkshare/pkg/logger"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
)

type WalletView struct {
	UserID         string                     `json:"user_id"`
	Credits        credits.Credits            `json:"credits"`
	PendingCredits credits.Credits            `json:"pending_credits"`
	Transactions   []model.CreditsTransaction `json:"transactions"`
}

type WalletHandler struct {
	service service.WalletService
	log     *logger.Logger
}

func NewWalletHandler(service service.WalletService, log *logger.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		log:     log,
	}
}

// Me returns the caller's balances and ledger, optionally only the lines of one
// booking or request (?subject=).
func (h *WalletHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	wallet, err := h.service.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Me", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	view := WalletView{
		UserID:         wallet.UserID,
		Credits:        wallet.Credits(),
		PendingCredits: wallet.PendingCredits(),
		Transactions:   wallet.Transactions,
	}
	if subject := r.URL.Query().Get("subject"); subject != "" {
		view.Transactions = wallet.TransactionsFor(subject)
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WalletHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/wallets/me", h.Me)
}
