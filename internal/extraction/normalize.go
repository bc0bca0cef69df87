package extraction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayout is the fixed calendar-date format emitted by the prompt.
const dateLayout = "2006-01-02"

// Normalize decodes raw AI output into an Extraction. The provider's output
// shape is not contractually guaranteed: the payload may arrive wrapped in a
// one-element array, echoed inside a {"properties": {...}} schema envelope,
// or fenced in markdown. Every field is individually optional and a field of
// the wrong type is treated as absent. Normalize returns nil only when the
// text holds no decodable JSON object at all.
func Normalize(rawText string) *Extraction {
	text := stripFences(rawText)
	if text == "" {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil
	}

	obj := selectObject(value)
	if obj == nil {
		return nil
	}

	return decodeExtraction(obj)
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// selectObject picks the object to decode from a parsed JSON value. Ordered,
// first match wins: array-wrapped takes the first element, a schema-echo
// envelope yields its nested "properties" object, anything else decodes
// directly.
func selectObject(value any) map[string]any {
	switch v := value.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		obj, ok := v[0].(map[string]any)
		if !ok {
			return nil
		}
		return obj
	case map[string]any:
		if props, ok := v["properties"].(map[string]any); ok {
			return props
		}
		return v
	default:
		return nil
	}
}

func decodeExtraction(obj map[string]any) *Extraction {
	ext := &Extraction{
		IsValid:        asBool(obj, "isValid"),
		StoreName:      asString(obj, "store_name"),
		StoreAddress:   asString(obj, "store_address"),
		Title:          asString(obj, "title"),
		Date:           asDate(obj, "date"),
		TotalAmount:    asDecimal(obj, "total_amount"),
		TotalTax:       asDecimal(obj, "total_tax"),
		Currency:       asString(obj, "currency"),
		PaymentMethod:  asString(obj, "payment_method"),
		LogoSearchTerm: asString(obj, "logo_search_term"),
		Items:          decodeItems(obj),
	}
	if msg := asString(obj, "message"); msg != nil {
		ext.Message = *msg
	}
	return ext
}

// decodeItems decodes the items list with per-field fallbacks. Absence of
// the list, or entries that are not objects, yield an empty list rather than
// an error.
func decodeItems(obj map[string]any) []Item {
	raw, ok := obj["items"].([]any)
	if !ok {
		return []Item{}
	}

	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		item := Item{
			Name:                "Unknown Item",
			Price:               decimal.Zero,
			Category:            "Other",
			OriginalPrice:       asDecimal(m, "original_price"),
			DiscountDescription: asString(m, "discount_description"),
		}
		if name := asString(m, "name"); name != nil {
			item.Name = *name
		}
		if price := asDecimal(m, "price"); price != nil {
			item.Price = *price
		}
		if category := asString(m, "category"); category != nil {
			item.Category = *category
		}
		if isDiscount := asBool(m, "isDiscount"); isDiscount != nil {
			item.IsDiscount = *isDiscount
		}
		items = append(items, item)
	}
	return items
}

func asString(obj map[string]any, key string) *string {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func asBool(obj map[string]any, key string) *bool {
	b, ok := obj[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// asDecimal reads a numeric field. The decoder is configured with UseNumber,
// so JSON numbers arrive as json.Number and convert without float drift.
func asDecimal(obj map[string]any, key string) *decimal.Decimal {
	num, ok := obj[key].(json.Number)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(num.String())
	if err != nil {
		return nil
	}
	return &d
}

// asDate parses the fixed YYYY-MM-DD format; unparseable dates are treated
// as absent, not as a decode failure.
func asDate(obj map[string]any, key string) *time.Time {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}
