//nolint:wrapcheck
package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/users"
)

var (
	ErrOrderIDEmpty           = errors.New("order id is empty")
	ErrOrderItemsEmpty        = errors.New("order items are empty")
	ErrOrderItemInvalid       = errors.New("order item is invalid")
	ErrOrderItemDuplicate     = errors.New("order item references the same account twice")
	ErrOrderAmountInvalid     = errors.New("order total amount is invalid")
	ErrOrderStatusUnknown     = errors.New("order status is unknown")
	ErrTransactionTypeUnknown = errors.New("order transaction type is unknown")
	ErrInvalidTransition      = errors.New("invalid order status transition")
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusRenting   OrderStatus = "renting"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsActive reports whether an order in this status holds its accounts.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPaid || s == OrderStatusRenting
}

// ActiveStatuses are the statuses of orders currently holding accounts.
var ActiveStatuses = []OrderStatus{OrderStatusPaid, OrderStatusRenting}

func ParseOrderStatus(status string) (OrderStatus, error) {
	switch OrderStatus(status) {
	case OrderStatusPending, OrderStatusPaid, OrderStatusRenting,
		OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled:
		return OrderStatus(status), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrOrderStatusUnknown, status)
	}
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRenting, OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusRenting: {OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled},
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeRent     TransactionType = "rent"
)

func ParseTransactionType(typ string) (TransactionType, error) {
	switch TransactionType(typ) {
	case TransactionTypePurchase, TransactionTypeRent:
		return TransactionType(typ), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTransactionTypeUnknown, typ)
	}
}

// TargetStatus is the listing status an account takes once an item of this
// type is paid for.
func (t TransactionType) TargetStatus() accounts.Status {
	if t == TransactionTypeRent {
		return accounts.StatusRenting
	}

	return accounts.StatusSold
}

type Item struct {
	AccountID         string
	TransactionType   TransactionType
	Price             int64
	RentDurationHours int
	RentEndDate       *time.Time
	Title             string

	// ReleasedAt is set once the item stops holding its account, before or
	// together with the order leaving an active status.
	ReleasedAt *time.Time
}

func (i *Item) Validate() error {
	if i.AccountID == "" {
		return fmt.Errorf("%w: account id is empty", ErrOrderItemInvalid)
	}

	if i.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrOrderItemInvalid)
	}

	switch i.TransactionType {
	case TransactionTypeRent:
		if i.RentDurationHours <= 0 {
			return fmt.Errorf("%w: rent duration must be positive", ErrOrderItemInvalid)
		}
	case TransactionTypePurchase:
	default:
		return fmt.Errorf("%w: %s", ErrTransactionTypeUnknown, i.TransactionType)
	}

	return nil
}

// StartRent fixes the rental end date relative to the payment time.
func (i *Item) StartRent(paidAt time.Time) {
	if i.TransactionType != TransactionTypeRent {
		return
	}

	end := paidAt.Add(time.Duration(i.RentDurationHours) * time.Hour)
	i.RentEndDate = &end
}

func (i *Item) IsExpired(now time.Time) bool {
	return i.TransactionType == TransactionTypeRent && i.RentEndDate != nil && !now.Before(*i.RentEndDate)
}

func (i *Item) IsReleased() bool {
	return i.ReleasedAt != nil
}

// Release marks the item as no longer holding its account. Releasing twice
// keeps the first time.
func (i *Item) Release(at time.Time) {
	if i.ReleasedAt != nil {
		return
	}

	i.ReleasedAt = &at
}

type Order struct {
	ID               string
	BuyerID          string
	TotalAmount      int64
	Status           OrderStatus
	PaymentReference string
	Items            []Item
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewOrder(id, buyerID string, totalAmount int64, status OrderStatus, items []Item) (*Order, error) {
	if id == "" {
		return nil, ErrOrderIDEmpty
	}

	if err := users.ValidateID(buyerID); err != nil {
		return nil, err
	}

	if totalAmount < 0 {
		return nil, ErrOrderAmountInvalid
	}

	if len(items) == 0 {
		return nil, ErrOrderItemsEmpty
	}

	seen := make(map[string]struct{}, len(items))

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, err
		}

		if _, ok := seen[items[i].AccountID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrOrderItemDuplicate, items[i].AccountID)
		}

		seen[items[i].AccountID] = struct{}{}
	}

	return &Order{
		ID:          id,
		BuyerID:     buyerID,
		TotalAmount: totalAmount,
		Status:      status,
		Items:       items,
	}, nil
}

func (o *Order) TransitionTo(status OrderStatus) error {
	if !CanTransition(o.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}

	o.Status = status

	return nil
}

// ItemFor returns the item referencing the account, if any.
func (o *Order) ItemFor(accountID string) (*Item, bool) {
	for i := range o.Items {
		if o.Items[i].AccountID == accountID {
			return &o.Items[i], true
		}
	}

	return nil, false
}

// RentItemFor returns the rent item referencing the account, if any.
func (o *Order) RentItemFor(accountID string) (*Item, bool) {
	item, ok := o.ItemFor(accountID)
	if !ok || item.TransactionType != TransactionTypeRent {
		return nil, false
	}

	return item, true
}

// Holding returns the item through which the order keeps the account off the
// market. Orders that are not active, and released items, hold nothing.
func (o *Order) Holding(accountID string) (*Item, bool) {
	if !o.Status.IsActive() {
		return nil, false
	}

	item, ok := o.ItemFor(accountID)
	if !ok || item.IsReleased() {
		return nil, false
	}

	return item, true
}

// HeldItems returns the items not released yet.
func (o *Order) HeldItems() []*Item {
	held := make([]*Item, 0, len(o.Items))

	for i := range o.Items {
		if !o.Items[i].IsReleased() {
			held = append(held, &o.Items[i])
		}
	}

	return held
}

// HoldsPurchase reports whether a bought account is still held by the order.
func (o *Order) HoldsPurchase() bool {
	for _, item := range o.HeldItems() {
		if item.TransactionType == TransactionTypePurchase {
			return true
		}
	}

	return false
}

// ExpiredRentals returns the held rent items whose period has run out.
// Purchases never expire.
func (o *Order) ExpiredRentals(now time.Time) []*Item {
	expired := make([]*Item, 0)

	for _, item := range o.HeldItems() {
		if item.IsExpired(now) {
			expired = append(expired, item)
		}
	}

	return expired
}

func (o *Order) SumPrices() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += item.Price
	}

	return sum
}
