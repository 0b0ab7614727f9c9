package invoice

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
)

var _ = Describe("SQLStore", func() {
	var (
		ctx    context.Context
		dbPath string
		store  *SQLStore
		alice  int64
		bob    int64
	)

	newInvoice := func(userID int64, customer, date string, items ...Item) *Invoice {
		inv := &Invoice{
			UserID:          userID,
			DocumentID:      "doc-" + customer,
			InvoiceNumber:   "INV-" + customer,
			ReferenceNumber: "REF-" + customer,
			CustomerName:    customer,
			InvoiceDate:     date,
			Items:           items,
			CreatedAt:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		for _, it := range items {
			inv.Total += it.Quantity * it.Rate
		}
		return inv
	}

	BeforeEach(func() {
		ctx = context.Background()
		dbPath = filepath.Join(GinkgoT().TempDir(), "invoices.db")

		var err error
		store, err = OpenSQLStore(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())

		alice, err = store.CreateUser(ctx, &auth.User{Username: "alice", PasswordHash: "h1", Email: "a@x.test"})
		Expect(err).NotTo(HaveOccurred())
		bob, err = store.CreateUser(ctx, &auth.User{Username: "bob", PasswordHash: "h2"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("users", func() {
		It("rejects duplicate usernames", func() {
			_, err := store.CreateUser(ctx, &auth.User{Username: "alice", PasswordHash: "h3"})
			Expect(err).To(MatchError(auth.ErrUsernameTaken))
		})

		It("looks users up by name and ID", func() {
			user, err := store.GetUserByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(alice))
			Expect(user.Email).To(Equal("a@x.test"))
			Expect(user.PasswordHash).To(Equal("h1"))

			user, err = store.GetUserByID(ctx, bob)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("bob"))
			Expect(user.Email).To(BeEmpty())
		})

		It("reports unknown users", func() {
			_, err := store.GetUserByUsername(ctx, "mallory")
			Expect(err).To(MatchError(auth.ErrUserNotFound))

			_, err = store.GetUserByID(ctx, 999)
			Expect(err).To(MatchError(auth.ErrUserNotFound))
		})
	})

	Describe("invoices", func() {
		var aliceInvoice int64

		BeforeEach(func() {
			var err error
			aliceInvoice, err = store.SaveInvoice(ctx, newInvoice(alice, "Acme", "2024-01-10",
				Item{Description: "Bolts", Quantity: 10, Rate: 0.5},
				Item{Description: "Nuts", Quantity: 4, Rate: 1.25},
			))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.SaveInvoice(ctx, newInvoice(alice, "Globex", "2024-02-10",
				Item{Description: "Gears", Quantity: 1, Rate: 80},
			))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.SaveInvoice(ctx, newInvoice(bob, "Initech", "2024-03-10",
				Item{Description: "Staplers", Quantity: 2, Rate: 15},
			))
			Expect(err).NotTo(HaveOccurred())
		})

		It("reads an invoice with its items", func() {
			inv, err := store.GetInvoice(ctx, alice, aliceInvoice)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.CustomerName).To(Equal("Acme"))
			Expect(inv.DocumentID).To(Equal("doc-Acme"))
			Expect(inv.Total).To(Equal(10.0))
			Expect(inv.CreatedAt).To(BeTemporally("==", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
			Expect(inv.Items).To(HaveLen(2))
			Expect(inv.Items[0].Description).To(Equal("Bolts"))
			Expect(inv.Items[1].Rate).To(Equal(1.25))
		})

		It("hides invoices owned by other users", func() {
			_, err := store.GetInvoice(ctx, bob, aliceInvoice)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("lists the user's invoices newest first", func() {
			invoices, err := store.ListInvoices(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(invoices).To(HaveLen(2))
			Expect(invoices[0].CustomerName).To(Equal("Globex"))
			Expect(invoices[0].Items).To(HaveLen(1))
			Expect(invoices[1].Items).To(HaveLen(2))
		})

		It("returns an empty list for users without invoices", func() {
			carol, err := store.CreateUser(ctx, &auth.User{Username: "carol", PasswordHash: "h"})
			Expect(err).NotTo(HaveOccurred())

			invoices, err := store.ListInvoices(ctx, carol)
			Expect(err).NotTo(HaveOccurred())
			Expect(invoices).NotTo(BeNil())
			Expect(invoices).To(BeEmpty())
		})

		It("deletes an invoice and its items", func() {
			Expect(store.DeleteInvoice(ctx, alice, aliceInvoice)).To(Succeed())

			_, err := store.GetInvoice(ctx, alice, aliceInvoice)
			Expect(err).To(MatchError(ErrNotFound))

			var items int
			Expect(store.DB().QueryRowContext(ctx,
				`SELECT COUNT(*) FROM invoice_items WHERE invoice_id = ?`, aliceInvoice).Scan(&items)).To(Succeed())
			Expect(items).To(BeZero())
		})

		It("refuses to delete another user's invoice", func() {
			Expect(store.DeleteInvoice(ctx, bob, aliceInvoice)).To(MatchError(ErrNotFound))
		})

		It("rejects invoices for unknown users", func() {
			_, err := store.SaveInvoice(ctx, newInvoice(999, "Ghost", "2024-01-01",
				Item{Description: "Nothing", Quantity: 1, Rate: 1},
			))
			Expect(err).To(HaveOccurred())
		})
	})

	When("the database is reopened", func() {
		It("keeps existing data and skips applied migrations", func() {
			Expect(store.Close()).To(Succeed())

			var err error
			store, err = OpenSQLStore(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())

			user, err := store.GetUserByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(alice))
		})
	})
})

var _ = Describe("BoltDocuments", func() {
	var db *BoltDocuments

	BeforeEach(func() {
		var err error
		db, err = NewBoltDocuments(filepath.Join(GinkgoT().TempDir(), "documents.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		db.Close()
	})

	document := func(id string, userID int64, created time.Time) *Document {
		return &Document{
			ID:          id,
			UserID:      userID,
			Filename:    id + ".pdf",
			StorageKey:  id + "_" + id + ".pdf",
			ContentType: "application/pdf",
			Status:      StatusProcessing,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
	}

	It("round-trips a document", func() {
		created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		Expect(db.SaveDocument(document("a", 1, created))).To(Succeed())

		doc, err := db.GetDocument("a")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Filename).To(Equal("a.pdf"))
		Expect(doc.Status).To(Equal(StatusProcessing))
		Expect(doc.CreatedAt.Equal(created)).To(BeTrue())
	})

	It("replaces a document on save", func() {
		doc := document("a", 1, time.Now())
		Expect(db.SaveDocument(doc)).To(Succeed())

		doc.Status = StatusSaved
		doc.InvoiceID = 42
		Expect(db.SaveDocument(doc)).To(Succeed())

		got, err := db.GetDocument("a")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(StatusSaved))
		Expect(got.InvoiceID).To(Equal(int64(42)))
	})

	It("reports missing documents", func() {
		_, err := db.GetDocument("missing")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("lists a user's documents newest first", func() {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(db.SaveDocument(document("old", 1, base))).To(Succeed())
		Expect(db.SaveDocument(document("new", 1, base.Add(time.Hour)))).To(Succeed())
		Expect(db.SaveDocument(document("other", 2, base.Add(2*time.Hour)))).To(Succeed())

		docs, err := db.ListDocuments(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
		Expect(docs[0].ID).To(Equal("new"))
		Expect(docs[1].ID).To(Equal("old"))
	})

	It("deletes documents", func() {
		Expect(db.SaveDocument(document("a", 1, time.Now()))).To(Succeed())
		Expect(db.DeleteDocument("a")).To(Succeed())

		_, err := db.GetDocument("a")
		Expect(err).To(MatchError(ErrNotFound))
	})
})
