//nolint:wrapcheck
package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/users"
)

var (
	ErrTransactionIDEmpty       = errors.New("wallet transaction id is empty")
	ErrTransactionAmountInvalid = errors.New("wallet transaction amount must be positive")
	ErrTransactionTypeUnknown   = errors.New("wallet transaction type is unknown")
	ErrTransactionStatusUnknown = errors.New("wallet transaction status is unknown")
	ErrInvalidTransition        = errors.New("invalid wallet transaction status transition")
)

type Type string

const (
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"
)

func ParseType(typ string) (Type, error) {
	switch Type(typ) {
	case TypeDeposit, TypeWithdraw:
		return Type(typ), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTransactionTypeUnknown, typ)
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(status string) (Status, error) {
	switch Status(status) {
	case StatusPending, StatusCompleted, StatusCancelled:
		return Status(status), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTransactionStatusUnknown, status)
	}
}

// Known payment methods. Method is free-form, these are the ones the engine
// writes itself.
const (
	MethodQR      = "qr"
	MethodBalance = "balance"
	MethodRefund  = "refund"
	MethodPenalty = "penalty"
	MethodBanking = "banking"
)

type Transaction struct {
	ID              string
	UserID          string
	Amount          int64
	Type            Type
	Method          string
	Status          Status
	TransactionCode string
	AdminNote       string
	OrderID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewTransaction(id, userID string, amount int64, typ Type, method, code string) (*Transaction, error) {
	if id == "" {
		return nil, ErrTransactionIDEmpty
	}

	if err := users.ValidateID(userID); err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, ErrTransactionAmountInvalid
	}

	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}

	return &Transaction{
		ID:              id,
		UserID:          userID,
		Amount:          amount,
		Type:            typ,
		Method:          method,
		Status:          StatusPending,
		TransactionCode: code,
	}, nil
}

// Delta is the signed balance effect of the transaction once completed.
func (t *Transaction) Delta() int64 {
	if t.Type == TypeWithdraw {
		return -t.Amount
	}

	return t.Amount
}

func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// Complete marks a pending transaction as money-moving.
func (t *Transaction) Complete(note string) error {
	return t.resolve(StatusCompleted, note)
}

// Cancel marks a pending transaction as rejected.
func (t *Transaction) Cancel(note string) error {
	return t.resolve(StatusCancelled, note)
}

func (t *Transaction) resolve(status Status, note string) error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	t.Status = status

	if note != "" {
		t.AdminNote = note
	}

	return nil
}
