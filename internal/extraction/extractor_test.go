package extraction

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/document"
)

var _ = Describe("parseObject", func() {
	It("should parse a plain object", func() {
		obj, err := parseObject(`{"payee":"Acme","amount":"10.50"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(obj).To(HaveKeyWithValue("payee", "Acme"))
	})

	It("should strip markdown fences and surrounding prose", func() {
		obj, err := parseObject("```json\nHere you go: {\"total\": \"12.00\"} thanks\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(obj).To(HaveKeyWithValue("total", "12.00"))
	})

	It("should fail when no object is present", func() {
		_, err := parseObject("I could not read this document")
		Expect(err).To(HaveOccurred())
	})

	It("should fail on malformed JSON", func() {
		_, err := parseObject(`{"payee": }`)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("reportedConfidence", func() {
	It("should use the model's confidence when it is a probability", func() {
		Expect(reportedConfidence(map[string]any{"confidence": 0.42}, 0.9)).To(Equal(0.42))
	})

	It("should fall back when the value is out of range or missing", func() {
		Expect(reportedConfidence(map[string]any{"confidence": 7.0}, 0.9)).To(Equal(0.9))
		Expect(reportedConfidence(map[string]any{"confidence": "high"}, 0.9)).To(Equal(0.9))
		Expect(reportedConfidence(map[string]any{}, 0.75)).To(Equal(0.75))
	})
})

var _ = Describe("buildPrompt", func() {
	It("should include the schema and the OCR text", func() {
		prompt, err := buildPrompt("PAY TO THE ORDER OF Acme", document.CheckSchema())
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt).To(ContainSubstring("Document type: check"))
		Expect(prompt).To(ContainSubstring(`"routingNumber"`))
		Expect(prompt).To(HaveSuffix("PAY TO THE ORDER OF Acme"))
	})

	It("should truncate very long OCR text", func() {
		prompt, err := buildPrompt(strings.Repeat("x", maxPromptChars*2), document.ReceiptSchema())
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt).To(HaveSuffix("(truncated)"))
		Expect(strings.Count(prompt, "x")).To(BeNumerically("<", maxPromptChars+200))
	})
})
