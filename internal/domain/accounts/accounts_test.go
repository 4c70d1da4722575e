package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	creds := Credentials{Username: "login", Password: "pw"}

	tests := []struct {
		name    string
		id      string
		seller  string
		title   string
		buy     int64
		rent    int64
		creds   Credentials
		wantErr error
	}{
		{name: "valid", id: "a1", seller: "s1", title: "Main", buy: 100, rent: 5, creds: creds},
		{name: "rent only", id: "a1", seller: "s1", title: "Main", rent: 5, creds: creds},
		{name: "empty id", seller: "s1", title: "Main", buy: 100, creds: creds, wantErr: ErrAccountIDEmpty},
		{name: "empty title", id: "a1", seller: "s1", buy: 100, creds: creds, wantErr: ErrAccountTitleEmpty},
		{name: "no prices", id: "a1", seller: "s1", title: "Main", creds: creds, wantErr: ErrAccountPriceInvalid},
		{name: "negative price", id: "a1", seller: "s1", title: "Main", buy: -1, rent: 5, creds: creds, wantErr: ErrAccountPriceInvalid},
		{name: "no login", id: "a1", seller: "s1", title: "Main", buy: 100, wantErr: ErrAccountLoginEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := NewAccount(tt.id, tt.seller, tt.title, tt.buy, tt.rent, tt.creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusAvailable, acc.Status)
			assert.True(t, acc.IsOwnedBy(tt.seller))
		})
	}
}

func TestAccount_TransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusAvailable, StatusRenting, true},
		{StatusAvailable, StatusSold, true},
		{StatusAvailable, StatusHidden, true},
		{StatusRenting, StatusAvailable, true},
		{StatusHidden, StatusAvailable, true},
		{StatusRenting, StatusRenting, false},
		{StatusRenting, StatusSold, false},
		{StatusSold, StatusAvailable, true},
		{StatusSold, StatusRenting, false},
		{StatusSold, StatusHidden, false},
		{StatusHidden, StatusSold, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			acc := &Account{Status: tt.from}

			err := acc.TransitionTo(tt.to)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, acc.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, acc.Status)
		})
	}
}

func TestViews(t *testing.T) {
	acc, err := NewAccount("a1", "s1", "Main", 100, 0, Credentials{Username: "login", Password: "pw"})
	require.NoError(t, err)

	var v View = NewOwnerView(acc)

	owner, ok := v.(OwnerView)
	require.True(t, ok)
	assert.Equal(t, "pw", owner.LoginPassword)
	assert.Equal(t, NewPublicView(acc), v.Public())

	_, ok = View(NewPublicView(acc)).(OwnerView)
	assert.False(t, ok)
}
