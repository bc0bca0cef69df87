package receipt

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// Fixed defaults substituted for absent extraction fields. The design favors
// a degraded-but-present record over outright failure.
const (
	defaultStoreName     = "Unknown Store"
	defaultTitle         = "Receipt"
	defaultCurrency      = "USD"
	defaultPaymentMethod = "Unknown"
)

// IDGenerator generates unique IDs for receipts and items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Finalizer turns an intermediate extraction into a finalized Receipt,
// rejecting declared-invalid receipts, filtering unusable items and
// recomputing the monetary total when the source total cannot be trusted.
type Finalizer struct {
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewFinalizer creates a Finalizer with UUID identifiers and the real clock.
func NewFinalizer() *Finalizer {
	return NewFinalizerWithDeps(&defaultIDGenerator{}, &defaultTimeSource{})
}

// NewFinalizerWithDeps creates a Finalizer with custom dependencies for testing.
func NewFinalizerWithDeps(idGen IDGenerator, timeSrc TimeSource) *Finalizer {
	return &Finalizer{idGenerator: idGen, timeSource: timeSrc}
}

// Finalize builds a Receipt owned by ownerID from an extraction. It returns
// nil only when the extraction carries an explicit isValid == false signal;
// every other irregularity is absorbed by defaulting. Absence of the flag is
// treated as valid.
func (f *Finalizer) Finalize(ext *extraction.Extraction, ownerID string) *Receipt {
	if ext == nil {
		return nil
	}
	if ext.IsValid != nil && !*ext.IsValid {
		return nil
	}

	tax := decimal.Zero
	if ext.TotalTax != nil {
		tax = *ext.TotalTax
	}

	// Provisional total: trust the source when present, otherwise
	// reconstruct it from the unfiltered items plus tax.
	total := sumPrices(ext.Items).Add(tax)
	if ext.TotalAmount != nil {
		total = *ext.TotalAmount
	}

	kept := filterItems(ext.Items)
	if len(kept) != len(ext.Items) {
		// Items were dropped, so the source total no longer reconciles.
		total = sumPrices(kept).Add(tax)
	}

	now := f.timeSource.Now()
	date := now
	if ext.Date != nil {
		date = *ext.Date
	}

	items := make([]Item, 0, len(kept))
	for _, it := range kept {
		item := Item{
			ID:         f.idGenerator.Generate(),
			Name:       it.Name,
			PriceCents: toCents(it.Price),
			Category:   ParseCategory(it.Category),
			IsDiscount: it.IsDiscount,
		}
		if it.OriginalPrice != nil {
			cents := toCents(*it.OriginalPrice)
			item.OriginalPriceCents = &cents
		}
		if it.DiscountDescription != nil {
			item.DiscountDescription = *it.DiscountDescription
		}
		items = append(items, item)
	}

	return &Receipt{
		ID:               f.idGenerator.Generate(),
		OwnerID:          ownerID,
		Images:           []string{},
		TotalAmountCents: toCents(total),
		Items:            items,
		StoreName:        stringOr(ext.StoreName, defaultStoreName),
		StoreAddress:     stringOr(ext.StoreAddress, ""),
		Title:            stringOr(ext.Title, defaultTitle),
		Date:             date,
		Currency:         stringOr(ext.Currency, defaultCurrency),
		PaymentMethod:    stringOr(ext.PaymentMethod, defaultPaymentMethod),
		TotalTaxCents:    toCents(tax),
		LogoSearchTerm:   stringOr(ext.LogoSearchTerm, ""),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// filterItems drops noisy line items. Discounted items are always retained;
// everything else must pass the minimum-content filter: a name longer than
// one rune with at least one character that is not punctuation, a symbol or
// whitespace.
func filterItems(items []extraction.Item) []extraction.Item {
	kept := make([]extraction.Item, 0, len(items))
	for _, it := range items {
		if it.IsDiscount || hasContent(it.Name) {
			kept = append(kept, it)
		}
	}
	return kept
}

func hasContent(name string) bool {
	runes := []rune(name)
	if len(runes) <= 1 {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r)
	}) >= 0
}

func sumPrices(items []extraction.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price)
	}
	return sum
}

// toCents converts a decimal dollar amount to integer cents, rounding to the
// nearest cent.
func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
