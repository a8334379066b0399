package extraction

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

var _ = Describe("Ollama", func() {
	var (
		upstream  *ghttp.Server
		extractor *Ollama
	)

	BeforeEach(func() {
		upstream = ghttp.NewServer()
		var err error
		extractor, err = NewOllama(OllamaConfig{BaseURL: upstream.URL() + "/", Model: "llama3.1"}, discardLogger())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		upstream.Close()
	})

	Describe("Extract", func() {
		var (
			result *Result
			err    error
		)

		JustBeforeEach(func() {
			result, err = extractor.Extract(context.Background(), "ACME HARDWARE\nTOTAL 42.99", document.ReceiptSchema())
		})

		When("the model returns a JSON object", func() {
			BeforeEach(func() {
				upstream.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
					ghttp.VerifyContentType("application/json"),
					func(w http.ResponseWriter, r *http.Request) {
						var req map[string]any
						Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
						Expect(req["model"]).To(Equal("llama3.1"))
						Expect(req["stream"]).To(BeFalse())
						Expect(req["format"]).To(HaveKeyWithValue("type", "object"))
						Expect(req["messages"]).To(HaveLen(2))
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"model":       "llama3.1",
						"done":        true,
						"done_reason": "stop",
						"message": map[string]any{
							"role":    "assistant",
							"content": `{"merchant":{"name":"ACME HARDWARE"},"totals":{"total":"42.99"},"currency":"USD","timestamp":null}`,
						},
					}),
				))
			})

			It("should return the parsed object", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.JSON).To(HaveKeyWithValue("currency", "USD"))
				Expect(result.Provider).To(Equal("ollama"))
				Expect(result.Confidence).To(Equal(ollamaDefaultConfidence))
			})
		})

		When("the model ran out of tokens", func() {
			BeforeEach(func() {
				upstream.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"done":        true,
					"done_reason": "length",
					"message":     map[string]any{"role": "assistant", "content": `{"currency":"USD"}`},
				}))
			})

			It("should cap the confidence", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Confidence).To(Equal(truncatedConfidenceCap))
			})
		})

		When("the server errors", func() {
			BeforeEach(func() {
				upstream.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model crashed"))
			})

			It("should return a retryable extraction error", func() {
				Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
				Expect(apperr.IsRetryable(err)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("model crashed"))
			})
		})

		When("the model is missing", func() {
			BeforeEach(func() {
				upstream.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"error":"model not found"}`))
			})

			It("should return a permanent extraction error", func() {
				Expect(apperr.IsRetryable(err)).To(BeFalse())
			})
		})

		When("the response is empty", func() {
			BeforeEach(func() {
				upstream.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"done":    true,
					"message": map[string]any{"role": "assistant", "content": ""},
				}))
			})

			It("should return an extraction error", func() {
				Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			})
		})
	})

	Describe("Available", func() {
		It("should succeed when the model is pulled under a tag", func() {
			upstream.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/api/tags"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"models": []map[string]any{{"name": "llama3.1:latest", "model": "llama3.1:latest"}},
				}),
			))
			Expect(extractor.Available(context.Background())).To(Succeed())
		})

		It("should fail when the model is not pulled", func() {
			upstream.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"models": []map[string]any{{"name": "mistral:7b"}},
			}))
			err := extractor.Available(context.Background())
			Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			Expect(apperr.IsRetryable(err)).To(BeFalse())
		})

		It("should fail when the server is down", func() {
			upstream.Close()
			Expect(extractor.Available(context.Background())).To(HaveOccurred())
		})
	})
})
