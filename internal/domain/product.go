package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend speaks plain JSON numbers for money.
	decimal.MarshalJSONWithoutQuotes = true
}

// LowStockThreshold marks products that need restocking on the dashboard
const LowStockThreshold = 10

// Product represents a product in the catalog
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Badge       string          `json:"badge,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// InStock reports whether at least one unit can be put in a cart
func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductInput is the create/replace payload for a product
type ProductInput struct {
	Name        string          `json:"name" validate:"required,notblank,max=255"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Badge       string          `json:"badge,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
}
