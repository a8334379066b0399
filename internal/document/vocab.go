package document

// Closed vocabularies for enum-valued fields. Values are canonical lower snake case.
var (
	AccountTypes = []string{"checking", "savings", "money_market", "other"}

	CheckTypes = []string{"personal", "business", "cashiers", "certified", "traveler", "money_order", "other"}

	ReceiptTypes = []string{
		"sale",
		"refund",
		"return",
		"exchange",
		"void",
		"invoice",
		"estimate",
		"order",
		"other",
	}

	PaymentMethods = []string{
		"cash",
		"credit_card",
		"debit_card",
		"gift_card",
		"mobile_payment",
		"check",
		"bank_transfer",
		"store_credit",
		"other",
	}
)
