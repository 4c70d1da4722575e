package accounts

import "time"

// View is a read projection of a listing. The concrete type decides whether
// login material is present.
type View interface {
	Public() PublicView
}

// PublicView carries no credentials and is safe for any viewer.
type PublicView struct {
	ID               string    `json:"id"`
	SellerID         string    `json:"seller_id"`
	Title            string    `json:"title"`
	Status           Status    `json:"status"`
	BuyPrice         int64     `json:"buy_price"`
	RentPricePerHour int64     `json:"rent_price_per_hour"`
	CreatedAt        time.Time `json:"created_at"`
}

func (v PublicView) Public() PublicView {
	return v
}

// OwnerView extends PublicView with login material.
type OwnerView struct {
	PublicView
	LoginUsername string `json:"login_username"`
	LoginPassword string `json:"login_password"`
}

func NewPublicView(a *Account) PublicView {
	return PublicView{
		ID:               a.ID,
		SellerID:         a.SellerID,
		Title:            a.Title,
		Status:           a.Status,
		BuyPrice:         a.BuyPrice,
		RentPricePerHour: a.RentPricePerHour,
		CreatedAt:        a.CreatedAt,
	}
}

func NewOwnerView(a *Account) OwnerView {
	return OwnerView{
		PublicView:    NewPublicView(a),
		LoginUsername: a.Credentials.Username,
		LoginPassword: a.Credentials.Password,
	}
}
