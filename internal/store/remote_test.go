package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

var receiptColumnNames = []string{
	"id", "owner_id", "images", "total_amount_cents", "items", "store_name",
	"store_address", "title", "purchase_date", "currency", "payment_method",
	"total_tax_cents", "logo_search_term", "created_at", "updated_at",
}

func receiptRow(rec *receipt.Receipt) *pgxmock.Rows {
	items, err := json.Marshal(rec.Items)
	Expect(err).NotTo(HaveOccurred())

	return pgxmock.NewRows(receiptColumnNames).AddRow(
		rec.ID, rec.OwnerID, rec.Images, rec.TotalAmountCents, items,
		rec.StoreName, rec.StoreAddress, rec.Title, rec.Date,
		rec.Currency, rec.PaymentMethod, rec.TotalTaxCents,
		rec.LogoSearchTerm, rec.CreatedAt, rec.UpdatedAt,
	)
}

var _ = Describe("RemoteStore", func() {
	var (
		mock   pgxmock.PgxPoolIface
		remote *RemoteStore
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
		remote = NewRemoteStore(mock)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mock.Close()
	})

	Describe("EnsureSchema", func() {
		It("should apply the schema", func() {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS receipts").
				WillReturnResult(pgxmock.NewResult("CREATE", 0))

			Expect(remote.EnsureSchema(ctx)).To(Succeed())
		})
	})

	Describe("SaveReceipt", func() {
		It("should insert and return the stored copy", func() {
			rec := testReceipt("r-1", "owner-1")
			items, err := json.Marshal(rec.Items)
			Expect(err).NotTo(HaveOccurred())

			mock.ExpectQuery("INSERT INTO receipts").
				WithArgs(
					rec.ID, rec.OwnerID, rec.Images, rec.TotalAmountCents, items,
					rec.StoreName, rec.StoreAddress, rec.Title, rec.Date,
					rec.Currency, rec.PaymentMethod, rec.TotalTaxCents,
					rec.LogoSearchTerm, rec.CreatedAt, rec.UpdatedAt,
				).
				WillReturnRows(receiptRow(rec))

			saved, err := remote.SaveReceipt(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(rec))
		})
	})

	Describe("GetReceipt", func() {
		It("should return the receipt", func() {
			rec := testReceipt("r-1", "owner-1")

			mock.ExpectQuery("SELECT .+ FROM receipts WHERE id").
				WithArgs("r-1", "owner-1").
				WillReturnRows(receiptRow(rec))

			got, err := remote.GetReceipt(ctx, "owner-1", "r-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(rec))
		})

		It("should translate no rows into not-found", func() {
			mock.ExpectQuery("SELECT .+ FROM receipts WHERE id").
				WithArgs("missing", "owner-1").
				WillReturnError(pgx.ErrNoRows)

			_, err := remote.GetReceipt(ctx, "owner-1", "missing")
			Expect(err).To(MatchError(receipt.ErrNotFound))
		})
	})

	Describe("ListReceipts", func() {
		It("should return all receipts for the owner", func() {
			rows := pgxmock.NewRows(receiptColumnNames)
			for _, rec := range []*receipt.Receipt{testReceipt("r-1", "owner-1"), testReceipt("r-2", "owner-1")} {
				items, err := json.Marshal(rec.Items)
				Expect(err).NotTo(HaveOccurred())
				rows.AddRow(
					rec.ID, rec.OwnerID, rec.Images, rec.TotalAmountCents, items,
					rec.StoreName, rec.StoreAddress, rec.Title, rec.Date,
					rec.Currency, rec.PaymentMethod, rec.TotalTaxCents,
					rec.LogoSearchTerm, rec.CreatedAt, rec.UpdatedAt,
				)
			}

			mock.ExpectQuery("SELECT .+ FROM receipts WHERE owner_id").
				WithArgs("owner-1").
				WillReturnRows(rows)

			recs, err := remote.ListReceipts(ctx, "owner-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
			Expect(recs[0].ID).To(Equal("r-1"))
			Expect(recs[1].ID).To(Equal("r-2"))
		})

		It("should return an empty list when the owner has no receipts", func() {
			mock.ExpectQuery("SELECT .+ FROM receipts WHERE owner_id").
				WithArgs("owner-1").
				WillReturnRows(pgxmock.NewRows(receiptColumnNames))

			recs, err := remote.ListReceipts(ctx, "owner-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).NotTo(BeNil())
			Expect(recs).To(BeEmpty())
		})
	})

	Describe("DeleteReceipt", func() {
		It("should delete the row", func() {
			mock.ExpectExec("DELETE FROM receipts").
				WithArgs("r-1", "owner-1").
				WillReturnResult(pgxmock.NewResult("DELETE", 1))

			Expect(remote.DeleteReceipt(ctx, "owner-1", "r-1")).To(Succeed())
		})
	})
})

var _ = Describe("Router", func() {
	var (
		router *Router
		local  *fakeBackend
		remote *fakeBackend
		ctx    context.Context
	)

	BeforeEach(func() {
		local = &fakeBackend{}
		remote = &fakeBackend{}
		router = NewRouter(local, remote)
		ctx = context.Background()
	})

	It("should route guest sessions to the local backend", func() {
		_, err := router.Persist(ctx, receipt.ModeGuest, testReceipt("r-1", "owner-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(local.saves).To(Equal(1))
		Expect(remote.saves).To(Equal(0))
	})

	It("should route authenticated sessions to the remote backend", func() {
		_, err := router.Persist(ctx, receipt.ModeAuthenticated, testReceipt("r-1", "owner-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(remote.saves).To(Equal(1))
		Expect(local.saves).To(Equal(0))
	})

	It("should reject authenticated sessions when no remote store is configured", func() {
		router = NewRouter(local, nil)

		_, err := router.Persist(ctx, receipt.ModeAuthenticated, testReceipt("r-1", "owner-1"))
		Expect(err).To(MatchError(ContainSubstring("remote store is not configured")))
	})

	It("should reject unknown modes", func() {
		_, err := router.Get(ctx, receipt.Mode("admin"), "owner-1", "r-1")
		Expect(err).To(MatchError(ContainSubstring("unknown session mode")))
	})

	It("should route reads by mode", func() {
		_, err := router.Get(ctx, receipt.ModeGuest, "owner-1", "r-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(local.gets).To(Equal(1))

		_, err = router.List(ctx, receipt.ModeAuthenticated, "owner-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(remote.lists).To(Equal(1))

		Expect(router.Delete(ctx, receipt.ModeGuest, "owner-1", "r-1")).To(Succeed())
		Expect(local.deletes).To(Equal(1))
	})
})

// fakeBackend counts calls per operation
type fakeBackend struct {
	saves   int
	gets    int
	lists   int
	deletes int
}

func (f *fakeBackend) SaveReceipt(ctx context.Context, rec *receipt.Receipt) (*receipt.Receipt, error) {
	f.saves++
	return rec, nil
}

func (f *fakeBackend) GetReceipt(ctx context.Context, ownerID, id string) (*receipt.Receipt, error) {
	f.gets++
	return testReceipt(id, ownerID), nil
}

func (f *fakeBackend) ListReceipts(ctx context.Context, ownerID string) ([]*receipt.Receipt, error) {
	f.lists++
	return []*receipt.Receipt{}, nil
}

func (f *fakeBackend) DeleteReceipt(ctx context.Context, ownerID, id string) error {
	f.deletes++
	return nil
}
