package handlers

import (
	"net/http"

	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/server/models"
)

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var payload models.CreateOrderRequest
	if !h.decodeJSON(w, r, &payload) {
		return
	}

	req, err := payload.ToMarket()
	if err != nil {
		h.handleAmountError(w, err)

		return
	}

	ord, err := h.engine.CreateOrder(r.Context(), lc, req)
	if err != nil {
		h.handleEngineError(w, "engine.CreateOrder()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewOrderResponse(ord))
}

func (h *Handlers) CheckoutOrder(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var payload models.CheckoutRequest
	if !h.decodeJSON(w, r, &payload) {
		return
	}

	items, err := models.ToMarketItems(payload.Items)
	if err != nil {
		h.handleAmountError(w, err)

		return
	}

	ord, err := h.engine.CheckoutWithBalance(r.Context(), lc, items)
	if err != nil {
		h.handleEngineError(w, "engine.CheckoutWithBalance()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewOrderResponse(ord))
}

func (h *Handlers) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	ords, err := h.engine.ListMyOrders(r.Context(), lc)
	if err != nil {
		h.handleEngineError(w, "engine.ListMyOrders()", err)

		return
	}

	if len(ords) == 0 {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewOrderResponses(ords))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	lc, ok := h.ledger(w, r)
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ord, err := h.engine.UpdateOrderStatus(r.Context(), lc, urlParam(r, "id"), orders.OrderStatus(req.Status))
	if err != nil {
		h.handleEngineError(w, "engine.UpdateOrderStatus()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewOrderResponse(ord))
}
