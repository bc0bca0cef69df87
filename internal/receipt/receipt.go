package receipt

import "time"

// Category is the closed set of spending categories an item can carry.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryDining        Category = "Dining"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryTransport     Category = "Transport"
	CategoryServices      Category = "Services"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"
)

// ParseCategory maps free-form category text onto the closed set, defaulting
// to Other.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryGroceries, CategoryDining, CategoryShopping, CategoryHealth,
		CategoryTransport, CategoryServices, CategoryEntertainment:
		return Category(s)
	default:
		return CategoryOther
	}
}

// Item is one purchased line on a receipt. Amounts are in cents.
type Item struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	PriceCents          int64    `json:"price_cents"`
	Category            Category `json:"category"`
	OriginalPriceCents  *int64   `json:"original_price_cents,omitempty"`
	DiscountDescription string   `json:"discount_description,omitempty"`
	IsDiscount          bool     `json:"is_discount"`
}

// Receipt is the canonical persisted expense record. It is created exactly
// once per successful pipeline run and holds the reconciled invariant
// TotalAmountCents == sum(item prices) + TotalTaxCents.
type Receipt struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Images           []string  `json:"images"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Items            []Item    `json:"items"`
	StoreName        string    `json:"store_name"`
	StoreAddress     string    `json:"store_address"`
	Title            string    `json:"title"`
	Date             time.Time `json:"date"`
	Currency         string    `json:"currency"`
	PaymentMethod    string    `json:"payment_method"`
	TotalTaxCents    int64     `json:"total_tax_cents"`
	LogoSearchTerm   string    `json:"logo_search_term,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Mode selects the storage backend for a pipeline run.
type Mode string

const (
	// ModeGuest persists to the on-device store.
	ModeGuest Mode = "guest"
	// ModeAuthenticated persists to the remote store.
	ModeAuthenticated Mode = "authenticated"
)

// Session carries the externally resolved operating mode and owner identity
// for one pipeline run. The pipeline never reads ambient session state.
type Session struct {
	Mode    Mode
	OwnerID string
}

// Image is one captured receipt image as received from the client.
type Image struct {
	Data        []byte
	ContentType string
}
