// Package payintent builds the human readable references payers put on
// out-of-band bank transfers so that operators can match incoming money to
// orders and wallet transactions.
package payintent

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
)

type Op string

const (
	OpBuy      Op = "BUY"
	OpRent     Op = "RENT"
	OpOrder    Op = "ORDER"
	OpDeposit  Op = "DEP"
	OpWithdraw Op = "WDR"
	OpRefund   Op = "REFUND"
	OpPenalty  Op = "PENALTY"
)

const nonceLen = 8

// Format joins the non-empty parts with single spaces. Whitespace inside a
// part is collapsed so that the reference stays splittable.
func Format(op Op, subject, qualifier, userID string) string {
	parts := make([]string, 0, 4)

	for _, p := range []string{string(op), subject, qualifier, userID} {
		p = strings.Join(strings.Fields(p), "_")
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, " ")
}

// ForOrder returns the reference of a pending order. Single item orders name
// the account, e.g. "RENT acc1 48H buyer1"; larger carts name the order.
func ForOrder(ord *orders.Order) string {
	if len(ord.Items) == 1 {
		item := ord.Items[0]

		if item.TransactionType == orders.TransactionTypeRent {
			return Format(OpRent, item.AccountID, strconv.Itoa(item.RentDurationHours)+"H", ord.BuyerID)
		}

		return Format(OpBuy, item.AccountID, strconv.FormatInt(item.Price, 10), ord.BuyerID)
	}

	return Format(OpOrder, ord.ID, strconv.FormatInt(ord.TotalAmount, 10), ord.BuyerID)
}

// ForTransaction returns a fresh reference for a wallet transaction. A nonce
// keeps two deposits of the same amount apart.
func ForTransaction(typ wallet.Type, amount int64, userID string) string {
	op := OpDeposit
	if typ == wallet.TypeWithdraw {
		op = OpWithdraw
	}

	return Format(op, strconv.FormatInt(amount, 10), userID, nonce())
}

// ForRefund returns the reference stored on the compensating records written
// by a reclaim.
func ForRefund(op Op, accountID, orderID string) string {
	return Format(op, accountID, orderID, nonce())
}

func nonce() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	return strings.ToUpper(id[:nonceLen])
}
