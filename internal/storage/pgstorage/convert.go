package pgstorage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage/dbmodels"
)

func toUser(dbUser *dbmodels.User) (*users.User, error) {
	role, err := users.ParseRole(dbUser.Role)
	if err != nil {
		return nil, fmt.Errorf("users.ParseRole: %w", err)
	}

	return &users.User{
		ID:        dbUser.ID,
		Balance:   dbUser.Balance,
		Role:      role,
		CreatedAt: dbUser.CreatedAt,
	}, nil
}

func toAccount(dbAcc *dbmodels.Account) (*accounts.Account, error) {
	status, err := accounts.ParseStatus(dbAcc.Status)
	if err != nil {
		return nil, fmt.Errorf("accounts.ParseStatus: %w", err)
	}

	return &accounts.Account{
		ID:               dbAcc.ID,
		SellerID:         dbAcc.SellerID,
		Title:            dbAcc.Title,
		Status:           status,
		BuyPrice:         dbAcc.BuyPrice,
		RentPricePerHour: dbAcc.RentPricePerHour,
		Credentials: accounts.Credentials{
			Username: dbAcc.LoginUsername,
			Password: dbAcc.LoginPassword,
		},
		CreatedAt: dbAcc.CreatedAt,
		UpdatedAt: dbAcc.UpdatedAt,
	}, nil
}

func toOrder(dbOrder *dbmodels.Order, dbItems []*dbmodels.OrderItem) (*orders.Order, error) {
	status, err := orders.ParseOrderStatus(dbOrder.Status)
	if err != nil {
		return nil, fmt.Errorf("orders.ParseOrderStatus: %w", err)
	}

	items := make([]orders.Item, 0, len(dbItems))

	for _, dbItem := range dbItems {
		typ, err := orders.ParseTransactionType(dbItem.TransactionType)
		if err != nil {
			return nil, fmt.Errorf("orders.ParseTransactionType: %w", err)
		}

		item := orders.Item{
			AccountID:         dbItem.AccountID,
			TransactionType:   typ,
			Price:             dbItem.Price,
			RentDurationHours: int(dbItem.RentDurationHours.Int32),
			Title:             dbItem.Title.String,
		}

		if dbItem.RentEndDate.Valid {
			end := dbItem.RentEndDate.Time
			item.RentEndDate = &end
		}

		if dbItem.ReleasedAt.Valid {
			at := dbItem.ReleasedAt.Time
			item.ReleasedAt = &at
		}

		items = append(items, item)
	}

	return &orders.Order{
		ID:               dbOrder.ID,
		BuyerID:          dbOrder.BuyerID,
		TotalAmount:      dbOrder.TotalAmount,
		Status:           status,
		PaymentReference: dbOrder.PaymentReference.String,
		Items:            items,
		CreatedAt:        dbOrder.CreatedAt,
		UpdatedAt:        dbOrder.UpdatedAt,
	}, nil
}

func toTransaction(dbTxn *dbmodels.WalletTransaction) (*wallet.Transaction, error) {
	typ, err := wallet.ParseType(dbTxn.Type)
	if err != nil {
		return nil, fmt.Errorf("wallet.ParseType: %w", err)
	}

	status, err := wallet.ParseStatus(dbTxn.Status)
	if err != nil {
		return nil, fmt.Errorf("wallet.ParseStatus: %w", err)
	}

	return &wallet.Transaction{
		ID:              dbTxn.ID,
		UserID:          dbTxn.UserID,
		Amount:          dbTxn.Amount,
		Type:            typ,
		Method:          dbTxn.Method,
		Status:          status,
		TransactionCode: dbTxn.TransactionCode.String,
		AdminNote:       dbTxn.AdminNote.String,
		OrderID:         dbTxn.OrderID.String,
		CreatedAt:       dbTxn.CreatedAt,
		UpdatedAt:       dbTxn.UpdatedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt32(n int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(n), Valid: n != 0} //nolint:gosec
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
