package normalize

import (
	"github.com/zombor/docscan/internal/document"
)

var (
	receiptType = enumOf(document.ReceiptTypes, map[string]string{
		"purchase":    "sale",
		"sales":       "sale",
		"sales_slip":  "sale",
		"receipt":     "sale",
		"returned":    "return",
		"credit_note": "refund",
		"voided":      "void",
		"quote":       "estimate",
		"quotation":   "estimate",
	})
	paymentMethod = enumOf(document.PaymentMethods, map[string]string{
		"credit":        "credit_card",
		"creditcard":    "credit_card",
		"visa":          "credit_card",
		"mastercard":    "credit_card",
		"amex":          "credit_card",
		"debit":         "debit_card",
		"debitcard":     "debit_card",
		"eftpos":        "debit_card",
		"interac":       "debit_card",
		"gift":          "gift_card",
		"giftcard":      "gift_card",
		"apple_pay":     "mobile_payment",
		"google_pay":    "mobile_payment",
		"mobile":        "mobile_payment",
		"contactless":   "mobile_payment",
		"cheque":        "check",
		"transfer":      "bank_transfer",
		"wire":          "bank_transfer",
		"ach":           "bank_transfer",
		"credit_store":  "store_credit",
		"store_account": "store_credit",
	})
)

var totalsFields = []string{"subtotal", "tax", "tip", "discount", "total"}

// Receipt normalizes an extracted receipt. The input is not modified.
func Receipt(raw map[string]any) map[string]any {
	out := cloneObject(raw)

	apply(out, "timestamp", normalizeTimestamp)
	apply(out, "currency", normalizeCurrency)
	apply(out, "receiptType", receiptType)
	apply(out, "paymentMethod", paymentMethod)

	if totals, ok := out["totals"].(map[string]any); ok {
		for _, field := range totalsFields {
			apply(totals, field, normalizeMoney)
		}
	}

	eachObject(out, "items", func(item map[string]any) {
		apply(item, "quantity", normalizeNumber)
		apply(item, "unitPrice", normalizeMoney)
		apply(item, "totalPrice", normalizeMoney)
		apply(item, "discountAmount", normalizeMoney)
		apply(item, "discounted", normalizeBool)
	})

	eachObject(out, "taxes", func(tax map[string]any) {
		apply(tax, "taxRate", normalizeNumber)
		apply(tax, "taxAmount", normalizeMoney)
	})

	eachObject(out, "payments", func(payment map[string]any) {
		apply(payment, "method", paymentMethod)
		apply(payment, "amount", normalizeMoney)
		apply(payment, "lastDigits", normalizeLastDigits)
	})

	if metadata, ok := out["metadata"].(map[string]any); ok {
		apply(metadata, "currency", normalizeCurrency)
	}

	return out
}
