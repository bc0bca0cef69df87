package extraction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ResponseFormatJSON asks the provider for strict JSON output.
const ResponseFormatJSON = "json"

// GenerationConfig holds the recognized sampling and output options for an
// extraction request. Nil fields are left at the provider's defaults.
type GenerationConfig struct {
	Temperature     *float32
	TopP            *float32
	TopK            *int32
	MaxOutputTokens *int32
	ResponseFormat  string
}

// Request is a single extraction request. Image is optional; when empty the
// request is sent as a text-only prompt.
type Request struct {
	Image             []byte
	MIMEType          string
	Prompt            string
	SystemInstruction string
	Config            GenerationConfig
}

// Gateway sends extraction requests to a remote AI endpoint and returns the
// raw text response. Implementations classify failures into the package's
// sentinel errors and never retry internally.
type Gateway interface {
	Extract(ctx context.Context, req Request) (string, error)
	// Close releases gateway resources
	Close() error
}

// Extraction is the loosely-typed result decoded from AI output, prior to
// validation and defaulting. Every field is optional; it never escapes the
// normalizer/finalizer boundary.
type Extraction struct {
	IsValid        *bool
	Message        string
	StoreName      *string
	StoreAddress   *string
	Title          *string
	Date           *time.Time
	TotalAmount    *decimal.Decimal
	TotalTax       *decimal.Decimal
	Currency       *string
	PaymentMethod  *string
	LogoSearchTerm *string
	Items          []Item
}

// Item is one extracted line item, pre-validation.
type Item struct {
	Name                string
	Price               decimal.Decimal
	Category            string
	OriginalPrice       *decimal.Decimal
	DiscountDescription *string
	IsDiscount          bool
}
