package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

var _ = Describe("Validator", func() {
	var validator *Validator

	BeforeEach(func() {
		var err error
		validator, err = NewValidator(document.CheckSchema(), document.ReceiptSchema())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should accept a valid check", func() {
		Expect(validator.Validate("check", map[string]any{
			"payee":         "Acme Corp",
			"amount":        "1250.00",
			"date":          "2024-03-01",
			"routingNumber": "123456789",
			"accountType":   "checking",
			"signature":     true,
			"memo":          nil,
		})).To(Succeed())
	})

	It("should accept a valid receipt with a null timestamp", func() {
		Expect(validator.Validate("receipt", map[string]any{
			"merchant":  map[string]any{"name": "Test Store"},
			"timestamp": nil,
			"totals":    map[string]any{"total": "42.99"},
			"currency":  "USD",
			"items": []any{
				map[string]any{"description": "Hammer", "totalPrice": "42.99", "quantity": 1.0},
			},
		})).To(Succeed())
	})

	It("should report every violation", func() {
		err := validator.Validate("check", map[string]any{
			"amount":        "twelve",
			"routingNumber": "12345",
			"accountType":   "brokerage",
		})

		verr, ok := apperr.As(err)
		Expect(ok).To(BeTrue())
		Expect(verr.Kind).To(Equal(apperr.KindValidation))

		paths := make([]string, 0, len(verr.Issues))
		for _, issue := range verr.Issues {
			paths = append(paths, issue.Path)
		}
		Expect(paths).To(ContainElements("/", "/amount", "/routingNumber", "/accountType"))
	})

	It("should name the failing keyword", func() {
		err := validator.Validate("receipt", map[string]any{
			"merchant":  map[string]any{"name": "Shop"},
			"timestamp": nil,
			"totals":    map[string]any{"total": "-5.00"},
			"currency":  "usd",
		})

		verr, ok := apperr.As(err)
		Expect(ok).To(BeTrue())
		Expect(verr.Issues[indexOf(verr.Issues, "/currency")].Code).To(Equal("pattern"))
		Expect(verr.Issues[indexOf(verr.Issues, "/totals/total")].Code).To(Equal("pattern"))
	})

	It("should reject unknown schema names", func() {
		err := validator.Validate("invoice", map[string]any{})
		Expect(apperr.IsKind(err, apperr.KindConfiguration)).To(BeTrue())
	})
})

func indexOf(issues []apperr.Issue, path string) int {
	for i, issue := range issues {
		if issue.Path == path {
			return i
		}
	}
	Fail("no issue for " + path)
	return -1
}
