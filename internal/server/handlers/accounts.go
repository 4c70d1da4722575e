package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andymarkow/accountmart/internal/errmsg"
	"github.com/andymarkow/accountmart/internal/server/models"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	views, err := h.engine.ListAvailableAccounts(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.ListAvailableAccounts()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, views)
}

func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var payload models.ListAccountRequest
	if !h.decodeJSON(w, r, &payload) {
		return
	}

	req, err := payload.ToMarket()
	if err != nil {
		h.handleAmountError(w, err)

		return
	}

	view, err := h.engine.ListAccount(r.Context(), lc, req)
	if err != nil {
		h.handleEngineError(w, "engine.ListAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, view)
}

// GetAccount shows login material only to callers allowed to see it.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	view, err := h.engine.GetAccount(r.Context(), lc, urlParam(r, "id"))
	if err != nil {
		h.handleEngineError(w, "engine.GetAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, view)
}

func (h *Handlers) GetAccountCredentials(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	creds, ok, err := h.engine.GetAccountCredentials(r.Context(), lc, urlParam(r, "id"))
	if err != nil {
		h.handleEngineError(w, "engine.GetAccountCredentials()", err)

		return
	}

	if !ok {
		handleError(w, errmsg.ErrCredentialsUnavailable)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewCredentialsResponse(creds))
}

func (h *Handlers) GetAccountOrders(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	ords, err := h.engine.ActiveOrdersForAccount(r.Context(), lc, urlParam(r, "id"))
	if err != nil {
		h.handleEngineError(w, "engine.ActiveOrdersForAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewOrderResponses(ords))
}

func (h *Handlers) ReclaimAccount(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	res, err := h.engine.ReclaimAccount(r.Context(), lc, urlParam(r, "id"))
	if err != nil {
		h.handleEngineError(w, "engine.ReclaimAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewReclaimResponse(res))
}

// SetAccountVisibility hides or unhides a listing. Admin only.
func (h *Handlers) SetAccountVisibility(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var req models.VisibilityRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.SetAccountVisibility(r.Context(), lc, urlParam(r, "id"), req.Hidden); err != nil {
		h.handleEngineError(w, "engine.SetAccountVisibility()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}
