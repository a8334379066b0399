package normalize

import (
	"github.com/zombor/docscan/internal/document"
)

var (
	accountType = enumOf(document.AccountTypes, map[string]string{
		"chequing":          "checking",
		"personal_checking": "checking",
		"business_checking": "checking",
		"saving":            "savings",
		"moneymarket":       "money_market",
		"mma":               "money_market",
	})
	checkType = enumOf(document.CheckTypes, map[string]string{
		"cashier":          "cashiers",
		"cashiers_check":   "cashiers",
		"certified_check":  "certified",
		"travelers":        "traveler",
		"travellers":       "traveler",
		"travelers_cheque": "traveler",
		"travelers_check":  "traveler",
		"moneyorder":       "money_order",
		"payroll":          "business",
		"company":          "business",
	})
)

// Check normalizes an extracted check. The input is not modified.
func Check(raw map[string]any) map[string]any {
	out := cloneObject(raw)

	apply(out, "date", normalizeDate)
	apply(out, "amount", normalizeMoney)
	apply(out, "routingNumber", normalizeRouting)
	apply(out, "accountType", accountType)
	apply(out, "checkType", checkType)
	apply(out, "signature", normalizeBool)

	fillFromMICR(out)
	return out
}

// fillFromMICR populates absent routing, account and check numbers from the MICR line
func fillFromMICR(out map[string]any) {
	line, ok := out["micrLine"].(string)
	if !ok || line == "" {
		return
	}
	if !isBlank(out, "routingNumber") && !isBlank(out, "accountNumber") && !isBlank(out, "checkNumber") {
		return
	}

	micr, ok := ParseMICR(line)
	if !ok {
		return
	}
	if isBlank(out, "routingNumber") && micr.RoutingNumber != "" {
		out["routingNumber"] = micr.RoutingNumber
	}
	if isBlank(out, "accountNumber") && micr.AccountNumber != "" {
		out["accountNumber"] = micr.AccountNumber
	}
	if isBlank(out, "checkNumber") && micr.CheckNumber != "" {
		out["checkNumber"] = micr.CheckNumber
	}
}
