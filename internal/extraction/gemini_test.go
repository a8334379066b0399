package extraction

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

type fakeGenerator struct {
	resp    *genai.GenerateContentResponse
	err     error
	infoErr error
	prompts []string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(t))
		}
	}
	return f.resp, f.err
}

func (f *fakeGenerator) Info(ctx context.Context) (*genai.ModelInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &genai.ModelInfo{Name: "models/gemini-test"}, nil
}

func textResponse(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(text)}},
			FinishReason: reason,
		}},
	}
}

var _ = Describe("Gemini", func() {
	var (
		gen           *fakeGenerator
		gotSchema     *genai.Schema
		extractor     *Gemini
		result        *Result
		err           error
		requestSchema document.Schema
	)

	BeforeEach(func() {
		gen = &fakeGenerator{}
		gotSchema = nil
		requestSchema = document.CheckSchema()
		extractor = &Gemini{
			model: "gemini-test",
			newModel: func(schema *genai.Schema) generator {
				gotSchema = schema
				return gen
			},
			log: discardLogger(),
		}
	})

	JustBeforeEach(func() {
		result, err = extractor.Extract(context.Background(), "PAY TO Acme $10.50", requestSchema)
	})

	When("the model returns a JSON object", func() {
		BeforeEach(func() {
			gen.resp = textResponse(`{"payee":"Acme","amount":"10.50"}`, genai.FinishReasonStop)
		})

		It("should return the parsed object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.JSON).To(HaveKeyWithValue("payee", "Acme"))
			Expect(result.Provider).To(Equal("gemini"))
		})

		It("should use the default confidence", func() {
			Expect(result.Confidence).To(Equal(geminiDefaultConfidence))
		})

		It("should send the schema as the response schema", func() {
			Expect(gotSchema).NotTo(BeNil())
			Expect(gotSchema.Type).To(Equal(genai.TypeObject))
			Expect(gotSchema.Required).To(ConsistOf("payee", "amount"))
		})

		It("should send the OCR text in the prompt", func() {
			Expect(gen.prompts).To(HaveLen(1))
			Expect(gen.prompts[0]).To(ContainSubstring("PAY TO Acme $10.50"))
		})
	})

	When("the response was truncated", func() {
		BeforeEach(func() {
			gen.resp = textResponse(`{"payee":"Acme","amount":"10.50","confidence":0.95}`, genai.FinishReasonMaxTokens)
		})

		It("should cap the confidence", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Confidence).To(Equal(truncatedConfidenceCap))
		})
	})

	When("the response is not JSON", func() {
		BeforeEach(func() {
			gen.resp = textResponse("sorry, I can't help with that", genai.FinishReasonStop)
		})

		It("should return a permanent extraction error", func() {
			Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			Expect(apperr.IsRetryable(err)).To(BeFalse())
		})
	})

	When("the response has no candidates", func() {
		BeforeEach(func() {
			gen.resp = &genai.GenerateContentResponse{}
		})

		It("should return a retryable extraction error", func() {
			Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			Expect(apperr.IsRetryable(err)).To(BeTrue())
		})
	})

	When("the API rate limits the request", func() {
		BeforeEach(func() {
			gen.err = &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}
		})

		It("should return a retryable extraction error", func() {
			Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			Expect(apperr.IsRetryable(err)).To(BeTrue())
		})
	})

	When("the API rejects the request", func() {
		BeforeEach(func() {
			gen.err = &googleapi.Error{Code: http.StatusBadRequest, Message: "bad schema"}
		})

		It("should return a permanent extraction error", func() {
			Expect(apperr.IsRetryable(err)).To(BeFalse())
		})
	})

	Describe("Available", func() {
		It("should succeed when the model info is returned", func() {
			Expect(extractor.Available(context.Background())).To(Succeed())
		})

		It("should fail when the model cannot be described", func() {
			gen.infoErr = errors.New("boom")
			Expect(apperr.IsKind(extractor.Available(context.Background()), apperr.KindExtraction)).To(BeTrue())
		})
	})
})

var _ = Describe("toGenaiSchema", func() {
	It("should map nullable types and enums", func() {
		s := toGenaiSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"accountType": map[string]any{"type": []any{"string", "null"}, "enum": []any{"checking", "savings", nil}},
				"items": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "object", "properties": map[string]any{"quantity": map[string]any{"type": "number"}}},
				},
			},
			"required": []any{"accountType"},
		})

		Expect(s.Type).To(Equal(genai.TypeObject))
		Expect(s.Required).To(Equal([]string{"accountType"}))

		account := s.Properties["accountType"]
		Expect(account.Type).To(Equal(genai.TypeString))
		Expect(account.Nullable).To(BeTrue())
		Expect(account.Format).To(Equal("enum"))
		Expect(account.Enum).To(Equal([]string{"checking", "savings"}))

		items := s.Properties["items"]
		Expect(items.Type).To(Equal(genai.TypeArray))
		Expect(items.Items.Properties["quantity"].Type).To(Equal(genai.TypeNumber))
	})

	It("should convert both document schemas", func() {
		Expect(toGenaiSchema(document.CheckSchema().Definition).Properties).To(HaveKey("routingNumber"))
		Expect(toGenaiSchema(document.ReceiptSchema().Definition).Properties).To(HaveKey("merchant"))
	})
})
