package document

// Check contains the fields extracted from a check image
type Check struct {
	CheckNumber   string  `json:"checkNumber,omitempty"`
	Date          string  `json:"date,omitempty"` // YYYY-MM-DD
	Payee         string  `json:"payee"`
	Payer         string  `json:"payer,omitempty"`
	Amount        string  `json:"amount"` // decimal string
	Memo          string  `json:"memo,omitempty"`
	BankName      string  `json:"bankName,omitempty"`
	RoutingNumber string  `json:"routingNumber,omitempty"` // exactly 9 digits
	AccountNumber string  `json:"accountNumber,omitempty"`
	AccountType   string  `json:"accountType,omitempty"`
	CheckType     string  `json:"checkType,omitempty"`
	Signature     bool    `json:"signature"`
	MICRLine      string  `json:"micrLine,omitempty"`
	IsValidInput  bool    `json:"isValidInput"`
	Confidence    float64 `json:"confidence"`
}

// Merchant identifies the business that issued a receipt
type Merchant struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
	TaxID     string `json:"taxId,omitempty"`
	StoreID   string `json:"storeId,omitempty"`
	ChainName string `json:"chainName,omitempty"`
}

// Totals holds the money summary of a receipt. All amounts are decimal strings.
type Totals struct {
	Subtotal string `json:"subtotal,omitempty"`
	Tax      string `json:"tax,omitempty"`
	Tip      string `json:"tip,omitempty"`
	Discount string `json:"discount,omitempty"`
	Total    string `json:"total"`
}

// LineItem is a single purchased item
type LineItem struct {
	Description    string   `json:"description"`
	SKU            string   `json:"sku,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	UnitPrice      string   `json:"unitPrice,omitempty"`
	TotalPrice     string   `json:"totalPrice"`
	Discounted     bool     `json:"discounted,omitempty"`
	DiscountAmount string   `json:"discountAmount,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// Tax is a single tax line
type Tax struct {
	TaxName   string   `json:"taxName,omitempty"`
	TaxType   string   `json:"taxType,omitempty"`
	TaxRate   *float64 `json:"taxRate,omitempty"`
	TaxAmount string   `json:"taxAmount,omitempty"`
}

// Payment is a single tender used to pay
type Payment struct {
	Method        string `json:"method,omitempty"`
	CardType      string `json:"cardType,omitempty"`
	LastDigits    string `json:"lastDigits,omitempty"`
	Amount        string `json:"amount,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Metadata describes the extraction context of a receipt
type Metadata struct {
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	LanguageCode    string   `json:"languageCode,omitempty"`
	TimeZone        string   `json:"timeZone,omitempty"`
	ReceiptFormat   string   `json:"receiptFormat,omitempty"`
	SourceImageID   string   `json:"sourceImageId,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Receipt contains the fields extracted from a receipt image
type Receipt struct {
	Merchant      Merchant   `json:"merchant"`
	ReceiptNumber string     `json:"receiptNumber,omitempty"`
	ReceiptType   string     `json:"receiptType,omitempty"`
	Timestamp     string     `json:"timestamp,omitempty"` // ISO 8601
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Totals        Totals     `json:"totals"`
	Currency      string     `json:"currency"`
	Items         []LineItem `json:"items,omitempty"`
	Taxes         []Tax      `json:"taxes,omitempty"`
	Payments      []Payment  `json:"payments,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Metadata      *Metadata  `json:"metadata,omitempty"`
	IsValidInput  bool       `json:"isValidInput"`
	Confidence    float64    `json:"confidence"`
}
