package ocr

import (
	"math"
	"regexp"
	"strings"
)

var (
	zeroWidthChars     = regexp.MustCompile("[\u200B-\u200D\uFEFF\u00AD\u2060]")
	standaloneImgName  = regexp.MustCompile(`(?mi)^!?\[?[\w-]*(?:img|image|figure|fig|photo|pic)[\w-]*\.(jpeg|jpg|png|gif|webp|svg|bmp|tiff?)\]?(\([^)]*\))?[ \t]*$`)
	standaloneFileName = regexp.MustCompile(`(?mi)^[\w-]+\.(jpeg|jpg|png|gif|webp|svg|bmp|tiff?)[ \t]*$`)
	excessiveNewlines  = regexp.MustCompile(`\n{4,}`)
	trailingSpaces     = regexp.MustCompile(`(?m)[ \t]+$`)
)

// CleanText strips invisible characters and image placeholders from OCR markdown
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = zeroWidthChars.ReplaceAllString(text, "")
	text = standaloneImgName.ReplaceAllString(text, "")
	text = standaloneFileName.ReplaceAllString(text, "")

	// Normalise line endings
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = trailingSpaces.ReplaceAllString(text, "")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n\n")

	return strings.TrimSpace(text)
}

var (
	reDate     = regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)
	reCurrency = regexp.MustCompile(`(?i)\b(usd|eur|gbp|cad|aud|inr|jpy|chf|mxn)\b|[$£€¥]`)
	reAmount   = regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b|\b\d+\.\d{2}\b`)
	reMICR     = regexp.MustCompile(`[\x{2446}-\x{2449}]|\b\d{9}\b`)
)

// Confidence estimates OCR reliability from the features of the extracted text.
// Every artifact typical of a check or receipt raises the score above the base.
func Confidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	score := 0.3
	if reDate.MatchString(text) {
		score += 0.2
	}
	if reCurrency.MatchString(text) {
		score += 0.15
	}
	if reAmount.MatchString(text) {
		score += 0.15
	}
	if reMICR.MatchString(text) {
		score += 0.1
	}
	if len(text) > 120 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*100) / 100
}
