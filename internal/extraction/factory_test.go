package extraction

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

var _ = Describe("Factory", func() {
	var (
		cfg     FactoryConfig
		factory *Factory
	)

	BeforeEach(func() {
		cfg = FactoryConfig{Primary: "ollama"}
	})

	JustBeforeEach(func() {
		factory = NewFactory(cfg, discardLogger())
	})

	It("should register the built-in providers", func() {
		Expect(factory.Names()).To(Equal([]string{"gemini", "ollama"}))
	})

	It("should create a provider by name, ignoring case", func() {
		e, err := factory.Create("Ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Name()).To(Equal("ollama"))
	})

	It("should reject unknown providers with a configuration error", func() {
		_, err := factory.Create("claude")
		Expect(apperr.IsKind(err, apperr.KindConfiguration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("claude"))
	})

	It("should surface missing credentials as a configuration error", func() {
		_, err := factory.Create("gemini")
		Expect(apperr.IsKind(err, apperr.KindConfiguration)).To(BeTrue())
	})

	It("should allow custom providers", func() {
		factory.Register("mock", func() (Extractor, error) {
			return &mockExtractor{name: "mock"}, nil
		})
		e, err := factory.Create("mock")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Name()).To(Equal("mock"))
	})

	Describe("Build", func() {
		When("no provider is configured", func() {
			BeforeEach(func() {
				cfg.Primary = ""
			})

			It("should return a configuration error", func() {
				_, err := factory.Build()
				Expect(apperr.IsKind(err, apperr.KindConfiguration)).To(BeTrue())
			})
		})

		When("only a primary is configured", func() {
			It("should return the primary directly", func() {
				e, err := factory.Build()
				Expect(err).NotTo(HaveOccurred())
				Expect(e).To(BeAssignableToTypeOf(&Ollama{}))
			})
		})

		When("a fallback is configured", func() {
			BeforeEach(func() {
				cfg.Fallback = "mock"
			})

			It("should compose the two providers", func() {
				factory.Register("mock", func() (Extractor, error) {
					return &mockExtractor{name: "mock"}, nil
				})
				e, err := factory.Build()
				Expect(err).NotTo(HaveOccurred())
				Expect(e.Name()).To(Equal("ollama|mock"))
			})
		})

		When("the fallback equals the primary", func() {
			BeforeEach(func() {
				cfg.Fallback = "OLLAMA"
			})

			It("should not wrap the primary", func() {
				e, err := factory.Build()
				Expect(err).NotTo(HaveOccurred())
				Expect(e.Name()).To(Equal("ollama"))
			})
		})
	})
})

var _ = Describe("Fallback", func() {
	var (
		primary   *mockExtractor
		secondary *mockExtractor
		fallback  *Fallback
		result    *Result
		err       error
	)

	BeforeEach(func() {
		primary = &mockExtractor{name: "gemini", result: &Result{Provider: "gemini", Confidence: 0.9}}
		secondary = &mockExtractor{name: "ollama", result: &Result{Provider: "ollama", Confidence: 0.75}}
	})

	JustBeforeEach(func() {
		fallback = NewFallback(primary, secondary, discardLogger())
		result, err = fallback.Extract(context.Background(), "text", document.CheckSchema())
	})

	When("the primary succeeds", func() {
		It("should not call the secondary", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Provider).To(Equal("gemini"))
			Expect(secondary.calls).To(Equal(0))
		})
	})

	When("the primary is unavailable", func() {
		BeforeEach(func() {
			primary.availableErr = apperr.Extraction("extraction.available", true, errors.New("down"))
		})

		It("should use the secondary without calling the primary", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Provider).To(Equal("ollama"))
			Expect(primary.calls).To(Equal(0))
		})
	})

	When("the primary fails", func() {
		BeforeEach(func() {
			primary.result = nil
			primary.err = apperr.Extraction("extract", false, errors.New("bad json"))
		})

		It("should use the secondary", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Provider).To(Equal("ollama"))
		})
	})

	When("both providers fail", func() {
		BeforeEach(func() {
			primary.result = nil
			primary.err = apperr.Extraction("extract", true, errors.New("quota"))
			secondary.availableErr = apperr.Extraction("extraction.available", true, errors.New("connection refused"))
		})

		It("should return a composed extraction error", func() {
			Expect(apperr.IsKind(err, apperr.KindExtraction)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("quota"))
			Expect(err.Error()).To(ContainSubstring("connection refused"))
		})

		It("should be retryable when both failures were", func() {
			Expect(apperr.IsRetryable(err)).To(BeTrue())
		})

		When("one failure is permanent", func() {
			BeforeEach(func() {
				secondary.availableErr = apperr.Extraction("extraction.available", false, errors.New("model not pulled"))
			})

			It("should not be retryable", func() {
				Expect(apperr.IsRetryable(err)).To(BeFalse())
			})
		})
	})

	It("should close both providers", func() {
		Expect(fallback.Close()).To(Succeed())
		Expect(primary.closed).To(BeTrue())
		Expect(secondary.closed).To(BeTrue())
	})
})

var _ = Describe("Providers", func() {
	It("should list the members of a fallback pair in order", func() {
		primary := &mockExtractor{name: "gemini"}
		secondary := &mockExtractor{name: "ollama"}
		providers := Providers(NewFallback(primary, secondary, discardLogger()))
		Expect(providers).To(HaveLen(2))
		Expect(providers[0]).To(BeIdenticalTo(primary))
		Expect(providers[1]).To(BeIdenticalTo(secondary))
	})

	It("should return a single provider as is", func() {
		single := &mockExtractor{name: "ollama"}
		Expect(Providers(single)).To(ConsistOf(BeIdenticalTo(single)))
	})

	It("should return nothing for a missing extractor", func() {
		Expect(Providers(nil)).To(BeEmpty())
	})
})
