package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item as served by the remote API.
type Product struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Cost     decimal.Decimal `json:"cost"`
	Rating   int             `json:"rating"`
	Image    string          `json:"image"`
}

// CartEntry is the server-held (productId, qty) pair.
type CartEntry struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// CartLineItem is a product joined with the quantity held in the cart.
type CartLineItem struct {
	Product
	Qty int `json:"qty"`
}

// LineTotal returns cost x qty.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Cost.Mul(decimal.NewFromInt(int64(i.Qty)))
}

type OrderSummary struct {
	Products        int             `json:"products"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCharges decimal.Decimal `json:"shippingCharges"`
	Total           decimal.Decimal `json:"total"`
}

type RegisterForm struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the body of a successful POST /auth/login.
type LoginResult struct {
	Success  bool            `json:"success"`
	Token    string          `json:"token"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// APIResponse is the generic {success, message} envelope used by the API for failures.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Session holds the authentication state of one browser.
// An anonymous session has an empty Token.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Authenticated reports whether the session carries an API token.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}
