package handlers

import (
	"net/http"

	"github.com/andymarkow/accountmart/internal/server/models"
)

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var payload models.CreateTransactionRequest
	if !h.decodeJSON(w, r, &payload) {
		return
	}

	req, err := payload.ToMarket()
	if err != nil {
		h.handleAmountError(w, err)

		return
	}

	txn, err := h.engine.CreateTransaction(r.Context(), lc, req)
	if err != nil {
		h.handleEngineError(w, "engine.CreateTransaction()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewTransactionResponse(txn))
}

func (h *Handlers) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	txns, err := h.engine.ListMyTransactions(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.ListMyTransactions()", err)

		return
	}

	if len(txns) == 0 {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTransactionResponses(txns))
}

func (h *Handlers) GetPendingTransactions(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	txns, err := h.engine.ListPendingTransactions(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.ListPendingTransactions()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTransactionResponses(txns))
}

func (h *Handlers) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.resolveTransaction(w, r, true)
}

func (h *Handlers) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	h.resolveTransaction(w, r, false)
}

func (h *Handlers) resolveTransaction(w http.ResponseWriter, r *http.Request, approve bool) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	// The note is optional, an empty body is fine.
	var req models.ResolveTransactionRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}

	resolve, op := h.engine.RejectTransaction, "engine.RejectTransaction()"
	if approve {
		resolve, op = h.engine.ApproveTransaction, "engine.ApproveTransaction()"
	}

	txn, err := resolve(r.Context(), lc, urlParam(r, "id"), req.AdminNote)
	if err != nil {
		h.handleEngineError(w, op, err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTransactionResponse(txn))
}
