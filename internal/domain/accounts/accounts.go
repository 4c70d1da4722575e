//nolint:wrapcheck
package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/users"
)

var (
	ErrAccountIDEmpty       = errors.New("account id is empty")
	ErrAccountTitleEmpty    = errors.New("account title is empty")
	ErrAccountPriceInvalid  = errors.New("account price is invalid")
	ErrAccountLoginEmpty    = errors.New("account login is empty")
	ErrAccountStatusUnknown = errors.New("account status is unknown")
	ErrInvalidTransition    = errors.New("invalid account status transition")
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusRenting   Status = "renting"
	StatusSold      Status = "sold"
	StatusHidden    Status = "hidden"
)

func (s Status) String() string {
	return string(s)
}

func ParseStatus(status string) (Status, error) {
	switch Status(status) {
	case StatusAvailable, StatusRenting, StatusSold, StatusHidden:
		return Status(status), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAccountStatusUnknown, status)
	}
}

// A sold account goes back on the market only when the order that bought it
// is refunded or cancelled.
var transitions = map[Status][]Status{
	StatusAvailable: {StatusRenting, StatusSold, StatusHidden},
	StatusRenting:   {StatusAvailable},
	StatusSold:      {StatusAvailable},
	StatusHidden:    {StatusAvailable},
}

// CanTransition reports whether the listing may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Credentials is the private login material of a listed account.
type Credentials struct {
	Username string
	Password string
}

type Account struct {
	ID               string
	SellerID         string
	Title            string
	Status           Status
	BuyPrice         int64
	RentPricePerHour int64
	Credentials      Credentials
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewAccount(id, sellerID, title string, buyPrice, rentPricePerHour int64, creds Credentials) (*Account, error) {
	if id == "" {
		return nil, ErrAccountIDEmpty
	}

	if err := users.ValidateID(sellerID); err != nil {
		return nil, err
	}

	if title == "" {
		return nil, ErrAccountTitleEmpty
	}

	if buyPrice < 0 || rentPricePerHour < 0 || (buyPrice == 0 && rentPricePerHour == 0) {
		return nil, ErrAccountPriceInvalid
	}

	if creds.Username == "" {
		return nil, ErrAccountLoginEmpty
	}

	return &Account{
		ID:               id,
		SellerID:         sellerID,
		Title:            title,
		Status:           StatusAvailable,
		BuyPrice:         buyPrice,
		RentPricePerHour: rentPricePerHour,
		Credentials:      creds,
	}, nil
}

// TransitionTo moves the account to the given status or fails with
// ErrInvalidTransition without touching the account.
func (a *Account) TransitionTo(status Status) error {
	if !CanTransition(a.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}

	a.Status = status

	return nil
}

func (a *Account) IsOwnedBy(userID string) bool {
	return a.SellerID == userID
}
