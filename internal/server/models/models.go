// Package models holds the JSON bodies of the HTTP API. Money is sent as a
// decimal that must be a whole number of units and is returned as an integer.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/market"
)

var (
	ErrAmountFractional = errors.New("amount has a fractional part")
	ErrAmountOutOfRange = errors.New("amount is out of range")
)

// Units converts a whole decimal amount to integer units.
func Units(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrAmountFractional, d)
	}

	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d)
	}

	return d.IntPart(), nil
}

type UserResponse struct {
	ID        string     `json:"id"`
	Role      users.Role `json:"role"`
	Balance   int64      `json:"balance"`
	CreatedAt string     `json:"created_at"`
}

func NewUserResponse(usr *users.User) UserResponse {
	return UserResponse{
		ID:        usr.ID,
		Role:      usr.Role,
		Balance:   usr.Balance,
		CreatedAt: usr.CreatedAt.Format(time.RFC3339),
	}
}

type UserBalanceResponse struct {
	Current int64 `json:"current"`
}

type ListAccountRequest struct {
	Title            string          `json:"title"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	RentPricePerHour decimal.Decimal `json:"rent_price_per_hour"`
	LoginUsername    string          `json:"login_username"`
	LoginPassword    string          `json:"login_password"`
}

func (r ListAccountRequest) ToMarket() (market.ListAccountRequest, error) {
	buyPrice, err := Units(r.BuyPrice)
	if err != nil {
		return market.ListAccountRequest{}, err
	}

	rentPrice, err := Units(r.RentPricePerHour)
	if err != nil {
		return market.ListAccountRequest{}, err
	}

	return market.ListAccountRequest{
		Title:            r.Title,
		BuyPrice:         buyPrice,
		RentPricePerHour: rentPrice,
		Username:         r.LoginUsername,
		Password:         r.LoginPassword,
	}, nil
}

type CredentialsResponse struct {
	LoginUsername string `json:"login_username"`
	LoginPassword string `json:"login_password"`
}

func NewCredentialsResponse(creds accounts.Credentials) CredentialsResponse {
	return CredentialsResponse{LoginUsername: creds.Username, LoginPassword: creds.Password}
}

type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

type OrderItemRequest struct {
	AccountID         string          `json:"account_id"`
	TransactionType   string          `json:"transaction_type"`
	Price             decimal.Decimal `json:"price"`
	RentDurationHours int             `json:"rent_duration_hours,omitempty"`
}

type CreateOrderRequest struct {
	BuyerID     string             `json:"buyer_id,omitempty"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Status      string             `json:"status,omitempty"`
	Items       []OrderItemRequest `json:"items"`
}

type CheckoutRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// ToMarketItems converts order lines. Unknown transaction types are passed
// through for the engine to reject.
func ToMarketItems(items []OrderItemRequest) ([]market.ItemRequest, error) {
	out := make([]market.ItemRequest, 0, len(items))

	for _, item := range items {
		price, err := Units(item.Price)
		if err != nil {
			return nil, err
		}

		out = append(out, market.ItemRequest{
			AccountID:         item.AccountID,
			TransactionType:   orders.TransactionType(item.TransactionType),
			Price:             price,
			RentDurationHours: item.RentDurationHours,
		})
	}

	return out, nil
}

func (r CreateOrderRequest) ToMarket() (market.CreateOrderRequest, error) {
	total, err := Units(r.TotalAmount)
	if err != nil {
		return market.CreateOrderRequest{}, err
	}

	items, err := ToMarketItems(r.Items)
	if err != nil {
		return market.CreateOrderRequest{}, err
	}

	status := orders.OrderStatusPending
	if r.Status != "" {
		status = orders.OrderStatus(r.Status)
	}

	return market.CreateOrderRequest{
		BuyerID:     r.BuyerID,
		TotalAmount: total,
		Status:      status,
		Items:       items,
	}, nil
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderItemResponse struct {
	AccountID         string                 `json:"account_id"`
	TransactionType   orders.TransactionType `json:"transaction_type"`
	Price             int64                  `json:"price"`
	RentDurationHours int                    `json:"rent_duration_hours,omitempty"`
	RentEndDate       string                 `json:"rent_end_date,omitempty"`
	ReleasedAt        string                 `json:"released_at,omitempty"`
}

type OrderResponse struct {
	ID               string              `json:"id"`
	BuyerID          string              `json:"buyer_id"`
	TotalAmount      int64               `json:"total_amount"`
	Status           orders.OrderStatus  `json:"status"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	Items            []OrderItemResponse `json:"items"`
	CreatedAt        string              `json:"created_at"`
}

func NewOrderResponse(ord *orders.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(ord.Items))

	for _, item := range ord.Items {
		resp := OrderItemResponse{
			AccountID:         item.AccountID,
			TransactionType:   item.TransactionType,
			Price:             item.Price,
			RentDurationHours: item.RentDurationHours,
		}

		if item.RentEndDate != nil {
			resp.RentEndDate = item.RentEndDate.Format(time.RFC3339)
		}

		if item.ReleasedAt != nil {
			resp.ReleasedAt = item.ReleasedAt.Format(time.RFC3339)
		}

		items = append(items, resp)
	}

	return OrderResponse{
		ID:               ord.ID,
		BuyerID:          ord.BuyerID,
		TotalAmount:      ord.TotalAmount,
		Status:           ord.Status,
		PaymentReference: ord.PaymentReference,
		Items:            items,
		CreatedAt:        ord.CreatedAt.Format(time.RFC3339),
	}
}

func NewOrderResponses(ords []*orders.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(ords))
	for _, ord := range ords {
		resp = append(resp, NewOrderResponse(ord))
	}

	return resp
}

type CreateTransactionRequest struct {
	UserID          string          `json:"user_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Method          string          `json:"method,omitempty"`
	TransactionCode string          `json:"transaction_code,omitempty"`
}

func (r CreateTransactionRequest) ToMarket() (market.CreateTransactionRequest, error) {
	amount, err := Units(r.Amount)
	if err != nil {
		return market.CreateTransactionRequest{}, err
	}

	return market.CreateTransactionRequest{
		UserID:          r.UserID,
		Amount:          amount,
		Type:            wallet.Type(r.Type),
		Method:          r.Method,
		TransactionCode: r.TransactionCode,
	}, nil
}

type ResolveTransactionRequest struct {
	AdminNote string `json:"admin_note"`
}

type TransactionResponse struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Amount          int64         `json:"amount"`
	Type            wallet.Type   `json:"type"`
	Method          string        `json:"method"`
	Status          wallet.Status `json:"status"`
	TransactionCode string        `json:"transaction_code"`
	AdminNote       string        `json:"admin_note,omitempty"`
	OrderID         string        `json:"order_id,omitempty"`
	CreatedAt       string        `json:"created_at"`
}

func NewTransactionResponse(txn *wallet.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              txn.ID,
		UserID:          txn.UserID,
		Amount:          txn.Amount,
		Type:            txn.Type,
		Method:          txn.Method,
		Status:          txn.Status,
		TransactionCode: txn.TransactionCode,
		AdminNote:       txn.AdminNote,
		OrderID:         txn.OrderID,
		CreatedAt:       txn.CreatedAt.Format(time.RFC3339),
	}
}

func NewTransactionResponses(txns []*wallet.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		resp = append(resp, NewTransactionResponse(txn))
	}

	return resp
}

type UpdateBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type ReclaimResponse struct {
	AccountID            string `json:"account_id"`
	OrderID              string `json:"order_id"`
	OrderStatus          string `json:"order_status"`
	BuyerID              string `json:"buyer_id"`
	RefundAmount         int64  `json:"refund_amount"`
	RefundTransactionID  string `json:"refund_transaction_id"`
	PenaltyTransactionID string `json:"penalty_transaction_id"`
}

func NewReclaimResponse(res *market.ReclaimResult) ReclaimResponse {
	return ReclaimResponse{
		AccountID:            res.AccountID,
		OrderID:              res.OrderID,
		OrderStatus:          res.OrderStatus.String(),
		BuyerID:              res.BuyerID,
		RefundAmount:         res.RefundAmount,
		RefundTransactionID:  res.RefundTransactionID,
		PenaltyTransactionID: res.PenaltyTransactionID,
	}
}
