package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return &d
}

func dec(s string) decimal.Decimal { return *decPtr(s) }

// seqIDGenerator hands out deterministic sequential IDs
type seqIDGenerator struct {
	n int
}

func (g *seqIDGenerator) Generate() string {
	g.n++
	return []string{"", "id-1", "id-2", "id-3", "id-4", "id-5"}[g.n]
}

var _ = Describe("Finalizer", func() {
	var (
		finalizer *Finalizer
		ext       *extraction.Extraction
		ownerID   string
		rec       *Receipt
		now       time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		finalizer = NewFinalizerWithDeps(&seqIDGenerator{}, &mockTimeSource{now: now})
		ownerID = "owner-1"
		ext = &extraction.Extraction{}
	})

	JustBeforeEach(func() {
		rec = finalizer.Finalize(ext, ownerID)
	})

	When("finalizing a valid extraction with items and tax", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				IsValid:   boolPtr(true),
				StoreName: strPtr("Cafe"),
				Items: []extraction.Item{
					{Name: "Tea", Price: dec("3.0"), Category: "Dining"},
				},
				TotalTax: decPtr("0.2"),
			}
		})

		It("should return a receipt", func() {
			Expect(rec).NotTo(BeNil())
		})

		It("should reconcile the total as item sum plus tax", func() {
			Expect(rec.TotalAmountCents).To(Equal(int64(320)))
		})

		It("should keep the item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("Tea"))
			Expect(rec.Items[0].PriceCents).To(Equal(int64(300)))
			Expect(rec.Items[0].Category).To(Equal(CategoryDining))
		})

		It("should assign fresh identifiers", func() {
			Expect(rec.Items[0].ID).To(Equal("id-1"))
			Expect(rec.ID).To(Equal("id-2"))
		})

		It("should assign the owner", func() {
			Expect(rec.OwnerID).To(Equal("owner-1"))
		})

		It("should keep the store name", func() {
			Expect(rec.StoreName).To(Equal("Cafe"))
		})
	})

	When("the extraction is declared invalid", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				IsValid:   boolPtr(false),
				Message:   "blurry",
				StoreName: strPtr("Cafe"),
				Items: []extraction.Item{
					{Name: "Tea", Price: dec("3.0")},
				},
			}
		})

		It("should return nil regardless of other fields", func() {
			Expect(rec).To(BeNil())
		})
	})

	When("the validity flag is absent", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{StoreName: strPtr("Cafe")}
		})

		It("should treat the extraction as valid", func() {
			Expect(rec).NotTo(BeNil())
		})
	})

	When("the source provides a total and no items", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				IsValid:     boolPtr(true),
				StoreName:   strPtr("X"),
				Items:       []extraction.Item{},
				TotalAmount: decPtr("5.0"),
			}
		})

		It("should trust the source total", func() {
			Expect(rec.TotalAmountCents).To(Equal(int64(500)))
		})

		It("should keep the empty item list", func() {
			Expect(rec.Items).To(BeEmpty())
		})
	})

	When("the source total is absent", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "Tea", Price: dec("3.0")},
					{Name: "Scone", Price: dec("4.5")},
				},
			}
		})

		It("should sum the item prices", func() {
			Expect(rec.TotalAmountCents).To(Equal(int64(750)))
		})
	})

	When("a punctuation-only item is present", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "#", Price: dec("1.0"), Category: "Other"},
					{Name: "Tea", Price: dec("3.0"), Category: "Dining"},
				},
				TotalAmount: decPtr("4.0"),
				TotalTax:    decPtr("0.5"),
			}
		})

		It("should drop the punctuation-only item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("Tea"))
		})

		It("should recompute the total from the surviving items plus tax", func() {
			Expect(rec.TotalAmountCents).To(Equal(int64(350)))
		})
	})

	When("an item name is a single character", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "a", Price: dec("1.0")},
					{Name: "Tea", Price: dec("3.0")},
				},
			}
		})

		It("should drop the item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].Name).To(Equal("Tea"))
		})
	})

	When("a discounted item has an unusable name", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "%", Price: dec("1.0"), IsDiscount: true},
					{Name: "Tea", Price: dec("3.0")},
				},
			}
		})

		It("should retain the discounted item regardless of filtering", func() {
			Expect(rec.Items).To(HaveLen(2))
		})
	})

	When("every item is filtered out", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "#", Price: dec("1.0")},
					{Name: "!", Price: dec("2.0")},
				},
				TotalAmount: decPtr("3.0"),
				TotalTax:    decPtr("0.4"),
			}
		})

		It("should yield an empty item list", func() {
			Expect(rec.Items).To(BeEmpty())
		})

		It("should reduce the total to tax only", func() {
			Expect(rec.TotalAmountCents).To(Equal(int64(40)))
		})
	})

	When("a free item is present", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "Points reward", Price: dec("0")},
				},
			}
		})

		It("should keep the zero-priced item", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].PriceCents).To(Equal(int64(0)))
		})
	})

	When("optional fields are absent", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{}
		})

		It("should default the store name", func() {
			Expect(rec.StoreName).To(Equal("Unknown Store"))
		})

		It("should default the address to empty", func() {
			Expect(rec.StoreAddress).To(Equal(""))
		})

		It("should default the title", func() {
			Expect(rec.Title).To(Equal("Receipt"))
		})

		It("should default the currency", func() {
			Expect(rec.Currency).To(Equal("USD"))
		})

		It("should default the payment method", func() {
			Expect(rec.PaymentMethod).To(Equal("Unknown"))
		})

		It("should default the tax to zero", func() {
			Expect(rec.TotalTaxCents).To(Equal(int64(0)))
		})

		It("should default the date to the current time", func() {
			Expect(rec.Date).To(Equal(now))
		})
	})

	When("an item carries an unknown category", func() {
		BeforeEach(func() {
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{Name: "Tea", Price: dec("3.0"), Category: "Beverages"},
				},
			}
		})

		It("should map it to Other", func() {
			Expect(rec.Items[0].Category).To(Equal(CategoryOther))
		})
	})

	When("an item carries discount metadata", func() {
		BeforeEach(func() {
			desc := "member price"
			ext = &extraction.Extraction{
				Items: []extraction.Item{
					{
						Name:                "Milk",
						Price:               dec("1.99"),
						OriginalPrice:       decPtr("2.99"),
						DiscountDescription: &desc,
						IsDiscount:          true,
					},
				},
			}
		})

		It("should carry the discount through", func() {
			item := rec.Items[0]
			Expect(item.IsDiscount).To(BeTrue())
			Expect(item.DiscountDescription).To(Equal("member price"))
			Expect(*item.OriginalPriceCents).To(Equal(int64(299)))
		})
	})
})
