package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/metrics"
	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/scanning"
)

var _ = Describe("Integration", func() {
	var (
		mistral  *ghttp.Server
		ollama   *ghttp.Server
		reg      *metrics.Registry
		frontend *httptest.Server
	)

	BeforeEach(func() {
		mistral = ghttp.NewServer()
		ollama = ghttp.NewServer()
		reg = metrics.New()

		ocrClient, err := ocr.NewMistral(ocr.MistralConfig{BaseURL: mistral.URL(), APIKey: "test-key"}, discardLogger())
		Expect(err).NotTo(HaveOccurred())

		extractor, err := extraction.NewOllama(extraction.OllamaConfig{BaseURL: ollama.URL(), Model: "llama3.1"}, discardLogger())
		Expect(err).NotTo(HaveOccurred())

		validator, err := extraction.NewValidator(document.CheckSchema(), document.ReceiptSchema())
		Expect(err).NotTo(HaveOccurred())

		service := scanning.NewService(scanning.Deps{
			OCR:       ocrClient,
			Extractor: extractor,
			Validator: validator,
			Metrics:   reg,
			Logger:    discardLogger(),
		})
		frontend = httptest.NewServer(NewServer(service, reg, Options{Version: "test"}, discardLogger()).Handler())
	})

	AfterEach(func() {
		frontend.Close()
		mistral.Close()
		ollama.Close()
	})

	postCheck := func() (*http.Response, map[string]any) {
		body, contentType := multipartBody("file", "check.jpg", []byte("jpeg bytes"))
		resp, err := http.Post(frontend.URL+"/api/checks/scan", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var out map[string]any
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
		return resp, out
	}

	When("both upstreams answer", func() {
		BeforeEach(func() {
			mistral.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/ocr"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"model": "mistral-ocr-latest",
					"pages": []map[string]any{
						{"index": 0, "markdown": "PAY TO THE ORDER OF Riverside Plumbing LLC $387.20 03/14/2024\n⑆011000015⑆ 4455667788⑈ 4821"},
					},
				}),
			))
			ollama.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"model":       "llama3.1",
					"done":        true,
					"done_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": `{"payee":"Riverside Plumbing LLC","amount":"$387.20","date":"03/14/2024","micrLine":"⑆011000015⑆ 4455667788⑈ 4821","signature":"yes","confidence":0.8}`,
					},
				}),
			))
		})

		It("should return the normalized check", func() {
			resp, body := postCheck()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			data := body["data"].(map[string]any)
			Expect(data["amount"]).To(Equal("387.20"))
			Expect(data["date"]).To(Equal("2024-03-14"))
			Expect(data["routingNumber"]).To(Equal("011000015"))
			Expect(data["accountNumber"]).To(Equal("4455667788"))
			Expect(data["checkNumber"]).To(Equal("4821"))
			Expect(data["isValidInput"]).To(BeTrue())
			Expect(body["provider"]).To(Equal("ollama"))
		})

		It("should combine OCR and extraction confidence", func() {
			_, body := postCheck()
			Expect(body["confidence"]).To(Equal(map[string]any{"ocr": 0.9, "extraction": 0.8, "overall": 0.85}))
		})

		It("should count the scan", func() {
			postCheck()
			Expect(testutil.ToFloat64(reg.ScansTotal.WithLabelValues("check", metrics.OutcomeOK))).To(Equal(1.0))
		})
	})

	When("OCR is rate limited", func() {
		BeforeEach(func() {
			mistral.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, `{"message":"slow down"}`))
		})

		It("should return a retryable failure without calling the extractor", func() {
			resp, body := postCheck()
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(body["code"]).To(Equal("ocr_error"))
			Expect(body["retryable"]).To(BeTrue())
			Expect(ollama.ReceivedRequests()).To(BeEmpty())
		})
	})
})
