package extraction

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Proxy", func() {
	var (
		server  *ghttp.Server
		proxy   *Proxy
		req     Request
		rawText string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		proxy = NewProxyWithClient(server.URL()+"/api/ai/generate", http.DefaultClient)
		req = Request{
			Image:             []byte("fake image"),
			MIMEType:          "image/jpeg",
			Prompt:            ReceiptPrompt,
			SystemInstruction: ReceiptSystemInstruction,
			Config:            DefaultConfig(),
		}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		rawText, err = proxy.Extract(context.Background(), req)
	})

	When("the proxy responds with text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/ai/generate"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"prompt":            ReceiptPrompt,
					"image":             "data:image/jpeg;base64,ZmFrZSBpbWFnZQ==",
					"systemInstruction": ReceiptSystemInstruction,
					"config": map[string]any{
						"temperature":     0.1,
						"topP":            0.95,
						"topK":            40,
						"maxOutputTokens": 4096,
						"responseFormat":  "json",
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"response": map[string]any{"text": `{"isValid": true}`},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the raw text", func() {
			Expect(rawText).To(Equal(`{"isValid": true}`))
		})
	})

	When("the request has no image", func() {
		BeforeEach(func() {
			req.Image = nil
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/ai/generate"),
				func(w http.ResponseWriter, r *http.Request) {
					body := make([]byte, r.ContentLength)
					r.Body.Read(body)
					Expect(string(body)).NotTo(ContainSubstring(`"image"`))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"response": map[string]any{"text": "ok"},
				}),
			))
		})

		It("should omit the image field", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the proxy rejects the credentials", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, "bad key"))
		})

		It("returns the classified error", func() {
			Expect(err).To(MatchError(ErrUnauthorized))
		})
	})

	When("the proxy is rate limited", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, "slow down"))
		})

		It("returns the classified error", func() {
			Expect(err).To(MatchError(ErrRateLimited))
		})
	})

	When("the proxy fails internally", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "boom"))
		})

		It("returns the classified error", func() {
			Expect(err).To(MatchError(ErrServer))
		})
	})

	When("the request is malformed", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadRequest, "bad request"))
		})

		It("returns the classified error", func() {
			Expect(err).To(MatchError(ErrBadRequest))
		})
	})

	When("the response holds no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"response": map[string]any{"text": "   "},
			}))
		})

		It("returns the no-content error", func() {
			Expect(err).To(MatchError(ErrNoContent))
		})
	})
})
