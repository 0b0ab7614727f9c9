package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/scanning"
)

var _ = Describe("Validate", func() {
	var (
		fields *scanning.InvoiceFields
		inv    *Invoice
		err    error
	)

	BeforeEach(func() {
		fields = &scanning.InvoiceFields{
			CustomerName:    " Globex ",
			Email:           "ap@globex.test",
			InvoiceDate:     "2024-05-10",
			ReferenceNumber: "PO-77",
			InvoiceNumber:   "INV-204",
			Items: []scanning.LineItem{
				{Description: "Consulting", Quantity: "3", Rate: "1,200.00"},
				{Description: "Travel", Rate: "99.999"},
			},
		}
	})

	JustBeforeEach(func() {
		inv, err = Validate(fields)
	})

	When("all fields are present", func() {
		It("builds the invoice", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.CustomerName).To(Equal("Globex"))
			Expect(inv.InvoiceNumber).To(Equal("INV-204"))
			Expect(inv.ReferenceNumber).To(Equal("PO-77"))
			Expect(inv.Items).To(Equal([]Item{
				{Description: "Consulting", Quantity: 3, Rate: 1200},
				{Description: "Travel", Quantity: 1, Rate: 99.999},
			}))
		})

		It("rounds the total to cents", func() {
			Expect(inv.Total).To(Equal(3700.0))
		})
	})

	When("the invoice number is missing", func() {
		BeforeEach(func() {
			fields.InvoiceNumber = ""
		})

		It("defaults it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.InvoiceNumber).To(Equal("UNKNOWN"))
		})
	})

	DescribeTable("required fields",
		func(mutate func(*scanning.InvoiceFields), missing string) {
			mutate(fields)
			_, err := Validate(fields)
			Expect(err).To(MatchError(ErrInvalidInvoice))
			Expect(err.Error()).To(ContainSubstring(missing))
		},
		Entry("customer", func(f *scanning.InvoiceFields) { f.CustomerName = "  " }, "customer_name"),
		Entry("date", func(f *scanning.InvoiceFields) { f.InvoiceDate = "" }, "invoice_date"),
		Entry("reference", func(f *scanning.InvoiceFields) { f.ReferenceNumber = "" }, "reference_number"),
		Entry("items", func(f *scanning.InvoiceFields) { f.Items = nil }, "no line items"),
	)

	When("some items are unusable", func() {
		BeforeEach(func() {
			fields.Items = append(fields.Items,
				scanning.LineItem{Description: "", Rate: "5"},
				scanning.LineItem{Description: "Freebie"},
				scanning.LineItem{Description: "Mystery", Quantity: "a few", Rate: "5"},
				scanning.LineItem{Description: "Broken", Rate: "n/a"},
				scanning.LineItem{Description: "Glitch", Quantity: "2", Rate: "NaN"},
				scanning.LineItem{Description: "Overflow", Quantity: "Inf", Rate: "1"},
			)
		})

		It("skips them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Items).To(HaveLen(2))
			Expect(inv.Total).To(Equal(3700.0))
		})
	})

	When("no item is usable", func() {
		BeforeEach(func() {
			fields.Items = []scanning.LineItem{{Description: "Freebie"}}
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ErrInvalidInvoice))
			Expect(inv).To(BeNil())
		})
	})

	When("nothing was extracted", func() {
		BeforeEach(func() {
			fields = nil
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ErrInvalidInvoice))
		})
	})
})
