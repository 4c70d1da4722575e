package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/andymarkow/accountmart/internal/auth"
	"github.com/andymarkow/accountmart/internal/errmsg"
	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/server/models"
	"github.com/andymarkow/accountmart/internal/storage"
)

type Handlers struct {
	storage storage.Storage
	engine  *market.Engine
	log     *slog.Logger
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(store storage.Storage, engine *market.Engine, opts ...Option) *Handlers {
	handlers := &Handlers{
		storage: store,
		engine:  engine,
		log:     slog.New(slog.DiscardHandler),
	}

	// Apply options
	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

// WithLogger is a option for Handlers that sets logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger.With(slog.String("module", "handlers"))
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// handleEngineError logs and answers an engine failure. Client errors are
// logged at info level, everything else as an error.
func (h *Handlers) handleEngineError(w http.ResponseWriter, op string, err error) {
	httpErr := errmsg.FromError(err)

	if httpErr.Code >= http.StatusInternalServerError {
		h.log.Error(op, slog.Any("error", err))
	} else {
		h.log.Info(op, slog.Any("error", err))
	}

	handleError(w, httpErr)
}

// ledger builds the per-request ledger context from the verified token.
func (h *Handlers) ledger(w http.ResponseWriter, r *http.Request) (market.LedgerContext, bool) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		h.log.Info("auth.IdentityFromContext()", slog.Any("error", err))
		handleError(w, errmsg.ErrTokenInvalid)

		return market.LedgerContext{}, false
	}

	return market.NewLedgerContext(h.storage, identity), true
}

// decodeJSON reads the request body into v and answers the client itself
// when the payload is missing or malformed.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Info("json.NewDecoder().Decode()", slog.Any("error", err))

		if errors.Is(err, io.EOF) {
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return false
		}

		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	return true
}

// handleAmountError answers a request whose money fields are not whole units.
func (h *Handlers) handleAmountError(w http.ResponseWriter, err error) {
	h.log.Info("models.Units()", slog.Any("error", err))

	if errors.Is(err, models.ErrAmountFractional) {
		handleError(w, errmsg.ErrAmountNotWhole)

		return
	}

	handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Error("storage.Ping", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}
