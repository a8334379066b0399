package document

// Schema describes the structured output requested from an extractor
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any // JSON Schema (draft 2020-12 subset)
	Strict      bool
}

const (
	patternDecimal    = `^-?\d+(\.\d+)?$`
	patternNonNegDec  = `^\d+(\.\d+)?$`
	patternDate       = `^\d{4}-\d{2}-\d{2}$`
	patternTimestamp  = `^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`
	patternRouting    = `^\d{9}$`
	patternCurrency   = `^[A-Z]{3}$`
	patternLastDigits = `^\d{2,4}$`
)

// CheckSchema returns the schema used to extract checks
func CheckSchema() Schema {
	props := map[string]any{
		"checkNumber":   nullable("string"),
		"date":          patterned(patternDate),
		"payee":         map[string]any{"type": "string", "minLength": 1},
		"payer":         nullable("string"),
		"amount":        map[string]any{"type": "string", "pattern": patternNonNegDec},
		"memo":          nullable("string"),
		"bankName":      nullable("string"),
		"routingNumber": patterned(patternRouting),
		"accountNumber": nullable("string"),
		"accountType":   enum(AccountTypes),
		"checkType":     enum(CheckTypes),
		"signature":     nullable("boolean"),
		"micrLine":      nullable("string"),
		"confidence":    confidenceProp(),
	}

	return Schema{
		Name:        "check",
		Description: "Structured data read from a bank check, including the MICR line at the bottom.",
		Definition: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []any{"payee", "amount"},
		},
		Strict: true,
	}
}

// ReceiptSchema returns the schema used to extract receipts
func ReceiptSchema() Schema {
	merchant := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":      map[string]any{"type": "string", "minLength": 1},
			"address":   nullable("string"),
			"phone":     nullable("string"),
			"website":   nullable("string"),
			"taxId":     nullable("string"),
			"storeId":   nullable("string"),
			"chainName": nullable("string"),
		},
		"required": []any{"name"},
	}

	totals := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subtotal": patterned(patternNonNegDec),
			"tax":      patterned(patternNonNegDec),
			"tip":      patterned(patternNonNegDec),
			"discount": patterned(patternNonNegDec),
			"total":    map[string]any{"type": "string", "pattern": patternNonNegDec},
		},
		"required": []any{"total"},
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description":    map[string]any{"type": "string", "minLength": 1},
			"sku":            nullable("string"),
			"quantity":       nullable("number"),
			"unit":           nullable("string"),
			"unitPrice":      patterned(patternDecimal),
			"totalPrice":     map[string]any{"type": "string", "pattern": patternDecimal},
			"discounted":     nullable("boolean"),
			"discountAmount": patterned(patternDecimal),
			"category":       nullable("string"),
		},
		"required": []any{"description", "totalPrice"},
	}

	tax := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"taxName":   nullable("string"),
			"taxType":   nullable("string"),
			"taxRate":   nullable("number"),
			"taxAmount": patterned(patternDecimal),
		},
	}

	payment := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method":        enum(PaymentMethods),
			"cardType":      nullable("string"),
			"lastDigits":    patterned(patternLastDigits),
			"amount":        patterned(patternDecimal),
			"transactionId": nullable("string"),
		},
	}

	metadata := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"confidenceScore": confidenceProp(),
			"currency":        patterned(patternCurrency),
			"languageCode":    nullable("string"),
			"timeZone":        nullable("string"),
			"receiptFormat":   nullable("string"),
			"sourceImageId":   nullable("string"),
			"warnings":        map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
		},
	}

	props := map[string]any{
		"merchant":      merchant,
		"receiptNumber": nullable("string"),
		"receiptType":   enum(ReceiptTypes),
		"timestamp":     patterned(patternTimestamp),
		"paymentMethod": enum(PaymentMethods),
		"totals":        totals,
		"currency":      map[string]any{"type": "string", "pattern": patternCurrency},
		"items":         map[string]any{"type": []any{"array", "null"}, "items": item},
		"taxes":         map[string]any{"type": []any{"array", "null"}, "items": tax},
		"payments":      map[string]any{"type": []any{"array", "null"}, "items": payment},
		"notes":         nullable("string"),
		"metadata":      metadata,
		"confidence":    confidenceProp(),
	}

	return Schema{
		Name:        "receipt",
		Description: "Structured data read from a purchase receipt: merchant, line items, taxes, payments and totals.",
		Definition: map[string]any{
			"type":       "object",
			"properties": props,
			// timestamp must be present but may be null when the receipt shows no date
			"required": []any{"merchant", "timestamp", "totals", "currency"},
		},
		Strict: true,
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []any{typ, "null"}}
}

func patterned(pattern string) map[string]any {
	return map[string]any{"type": []any{"string", "null"}, "pattern": pattern}
}

func enum(values []string) map[string]any {
	vals := make([]any, 0, len(values)+1)
	for _, v := range values {
		vals = append(vals, v)
	}
	vals = append(vals, nil)
	return map[string]any{"type": []any{"string", "null"}, "enum": vals}
}

func confidenceProp() map[string]any {
	return map[string]any{"type": []any{"number", "null"}, "minimum": 0.0, "maximum": 1.0}
}
