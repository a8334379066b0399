package hallucination

import (
	"github.com/zombor/docscan/internal/document"
)

// Values language models produce when they invent a check instead of reading one
var (
	placeholderCheckNumbers = set("1234", "0001", "001", "123", "12345", "1001", "0000", "000000")

	placeholderPayees = set(
		"John Doe", "Jane Doe", "John Smith", "Jane Smith", "Payee Name", "Payee",
		"Name", "Recipient", "Pay to the Order Of", "ABC Company", "ABC Corp",
		"Acme Corp", "Acme Corporation", "XYZ Company", "Company Name",
	)

	placeholderAmounts = amounts("100.00", "1000.00", "1234.56", "123.45", "0.00", "10.00", "1.00")

	placeholderDates = set(
		"2023-10-05", "2024-01-01", "2023-01-01", "2022-01-01", "2025-01-01",
		"2000-01-01", "1970-01-01", "2023-12-31", "2024-12-31",
	)
)

// Check scores an extracted check
func Check(c *document.Check) Verdict {
	var s scorer

	if in(placeholderCheckNumbers, c.CheckNumber) {
		s.hit("placeholder_check_number", 1)
	}

	payee := in(placeholderPayees, c.Payee)
	if payee {
		s.hit("placeholder_payee", 1)
	}

	amount := amountIn(placeholderAmounts, c.Amount)
	if amount {
		s.hit("placeholder_amount", 1)
	}

	if in(placeholderDates, c.Date) {
		s.hit("placeholder_date", 1)
	}

	// placeholder payee and amount together count double
	if payee && amount {
		s.hit("placeholder_payee_and_amount", 1)
	}

	return s.verdict(c.IsValidInput, c.Confidence)
}
