package handlers

import (
	"net/http"

	"github.com/andymarkow/accountmart/internal/server/models"
)

// EnsureUserProfile creates the caller's ledger record on first use.
func (h *Handlers) EnsureUserProfile(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	usr, err := h.engine.EnsureUser(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.EnsureUser()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewUserResponse(usr))
}

func (h *Handlers) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	balance, err := h.engine.GetBalance(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.GetBalance()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.UserBalanceResponse{Current: balance})
}

// UpdateUserBalance applies a manual signed correction. Admin only.
func (h *Handlers) UpdateUserBalance(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var req models.UpdateBalanceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	delta, err := models.Units(req.Delta)
	if err != nil {
		h.handleAmountError(w, err)

		return
	}

	if err := h.engine.UpdateBalance(r.Context(), lc, urlParam(r, "id"), delta); err != nil {
		h.handleEngineError(w, "engine.UpdateBalance()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}
