package hallucination

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/docscan/internal/document"
)

var (
	genericMerchantNames = set(
		"store", "market", "shop", "supermarket", "grocery", "grocery store", "restaurant",
		"cafe", "merchant", "retailer", "business", "company", "vendor", "store name",
		"merchant name", "shop name", "business name", "the store", "general store",
		"convenience store", "retail store", "unknown", "unknown merchant", "n/a",
	)

	suspiciousTotals = amounts("10.00", "20.00", "50.00", "100.00", "25.00", "99.99", "123.45", "12.34", "0.00")

	placeholderReceiptNumber = regexp.MustCompile(`(?i)^(#?0+1?|#?123|#?1234(5|56|567|5678)?|abc-?\d*|xxx+|n/?a|none|unknown|receipt\s*#?\s*\d?|inv(oice)?-?0*1)$`)

	placeholderAddresses = []string{
		"123 main", "456 elm", "789 oak", "anytown", "any town", "123 street", "1234 street",
		"address line", "city, state", "your address", "street address", "12345 main",
	}

	genericItemDescriptions = set(
		"item", "items", "product", "products", "misc", "miscellaneous", "goods",
		"merchandise", "article", "service", "services", "thing", "sample item",
		"test item", "item name", "product name", "description",
	)
	numberedGenericItem = regexp.MustCompile(`(?i)^(item|product|article)\s*#?\s*\d+$`)

	bigSingleItemTotal = decimal.NewFromInt(20)
)

// Receipt scores an extracted receipt
func Receipt(r *document.Receipt) Verdict {
	var s scorer
	m := r.Merchant
	name := strings.TrimSpace(m.Name)
	address := strings.TrimSpace(m.Address)
	phone := strings.TrimSpace(m.Phone)
	total := strings.TrimSpace(r.Totals.Total)

	if in(genericMerchantNames, name) {
		s.hit("generic_merchant_name", 1)
	}

	if amountIn(suspiciousTotals, total) {
		s.hit("suspicious_total", 1)
	}

	if strings.TrimSpace(r.Currency) != "" && name == "" && address == "" && phone == "" {
		s.hit("currency_without_merchant", 1)
	}

	if n := strings.TrimSpace(r.ReceiptNumber); n != "" && placeholderReceiptNumber.MatchString(n) {
		s.hit("placeholder_receipt_number", 1)
	}

	if placeholderAddress(address) {
		s.hit("placeholder_address", 1)
	}

	if hasGenericItem(r.Items) {
		s.hit("generic_item_description", 1)
	}

	if len(r.Items) <= 1 {
		if d, err := decimal.NewFromString(total); err == nil && d.GreaterThan(bigSingleItemTotal) {
			s.hit("few_items_large_total", 1)
		}
	}

	if strings.TrimSpace(r.Timestamp) == "" && name != "" && total != "" && len(r.Items) >= 2 {
		s.hit("missing_timestamp", 1)
	}

	if name != "" && total != "" && len(r.Items) >= 1 && address == "" && phone == "" && !hasItemDetail(r.Items) {
		s.hit("rich_output_minimal_input", 1)
	}

	return s.verdict(r.IsValidInput, r.Confidence)
}

func placeholderAddress(address string) bool {
	if address == "" {
		return false
	}
	lower := strings.ToLower(address)
	for _, p := range placeholderAddresses {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func hasGenericItem(items []document.LineItem) bool {
	for _, item := range items {
		desc := strings.TrimSpace(item.Description)
		if in(genericItemDescriptions, desc) || numberedGenericItem.MatchString(desc) {
			return true
		}
	}
	return false
}

// hasItemDetail reports whether any item carries data a model rarely invents
func hasItemDetail(items []document.LineItem) bool {
	for _, item := range items {
		if item.Quantity != nil || strings.TrimSpace(item.UnitPrice) != "" || strings.TrimSpace(item.SKU) != "" {
			return true
		}
	}
	return false
}
