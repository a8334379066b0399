package ocr

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CleanText", func() {
	It("should strip zero-width characters", func() {
		Expect(CleanText("TO\u200bTAL\ufeff 12.00")).To(Equal("TOTAL 12.00"))
	})

	It("should drop standalone image lines", func() {
		Expect(CleanText("Header\n![img-0.jpeg](img-0.jpeg)\nFooter")).To(Equal("Header\n\nFooter"))
	})

	It("should collapse excessive blank lines", func() {
		Expect(CleanText("a\n\n\n\n\n\nb")).To(Equal("a\n\n\nb"))
	})
})

var _ = Describe("Confidence", func() {
	It("should be zero for empty text", func() {
		Expect(Confidence("   ")).To(Equal(0.0))
	})

	It("should return the base score for plain text", func() {
		Expect(Confidence("hello")).To(Equal(0.3))
	})

	It("should reward MICR symbols", func() {
		Expect(Confidence("⑆123456789⑆")).To(Equal(0.4))
	})

	It("should stay within [0, 1]", func() {
		long := "2024-01-15 USD $1,234.56 ⑆123456789⑆ "
		for len(long) < 200 {
			long += "padding "
		}
		Expect(Confidence(long)).To(BeNumerically("<=", 1.0))
		Expect(Confidence(long)).To(Equal(1.0))
	})
})

var _ = Describe("Supported", func() {
	It("should accept common image types with parameters", func() {
		Expect(Supported("Image/JPEG; charset=binary")).To(BeTrue())
		Expect(Supported("image/jpg")).To(BeTrue())
		Expect(Supported("application/pdf")).To(BeTrue())
	})

	It("should reject other types", func() {
		Expect(Supported("text/plain")).To(BeFalse())
		Expect(Supported("")).To(BeFalse())
	})
})
