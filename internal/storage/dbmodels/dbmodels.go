package dbmodels

import (
	"database/sql"
	"time"
)

type User struct {
	ID        string
	Balance   int64
	Role      string
	CreatedAt time.Time
}

type Account struct {
	ID               string
	SellerID         string
	Title            string
	Status           string
	BuyPrice         int64
	RentPricePerHour int64
	LoginUsername    string
	LoginPassword    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Order struct {
	ID               string
	BuyerID          string
	TotalAmount      int64
	Status           string
	PaymentReference sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	OrderID           string
	Position          int
	AccountID         string
	TransactionType   string
	Price             int64
	RentDurationHours sql.NullInt32
	RentEndDate       sql.NullTime
	Title             sql.NullString
	ReleasedAt        sql.NullTime
}

type WalletTransaction struct {
	ID              string
	UserID          string
	Amount          int64
	Type            string
	Method          string
	Status          string
	TransactionCode sql.NullString
	AdminNote       sql.NullString
	OrderID         sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
