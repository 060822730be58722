package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/opsdeck/pkg/llm"
)

var _ = Describe("HTTPTransport", func() {
	var (
		server *httptest.Server
		mux    *http.ServeMux
		tr     *HTTPTransport
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)

		tr = NewHTTPTransport(HTTPTransportConfig{
			Target:  server.URL + "/",
			Headers: map[string]string{"X-Client-ID": "client-1"},
		})
	})

	decodeRequest := func(r *http.Request) llm.ChatRequest {
		var req llm.ChatRequest
		Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
		return req
	}

	Describe("Stream", func() {
		It("posts a streaming request and returns the body", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()

				Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(r.Header.Get("X-Client-ID")).To(Equal("client-1"))

				req := decodeRequest(r)
				Expect(req.Stream).To(BeTrue())
				Expect(req.Prompt()).To(Equal("hi"))

				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: [DONE]\n\n")
			})

			body, err := tr.Stream(context.Background(), prompt("hi"))
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			Expect(readAll(body)).To(Equal("data: [DONE]\n\n"))
		})

		It("adds the headers carried by the context", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()

				Expect(r.Header.Get("Authorization")).To(Equal("Bearer abc"))
				Expect(r.Header.Get("X-Client-ID")).To(Equal("tab-2"))
				fmt.Fprint(w, "data: [DONE]\n\n")
			})

			ctx := WithHeaders(context.Background(), http.Header{
				"Authorization": {"Bearer abc"},
				"X-Client-Id":   {"tab-2"},
			})
			body, err := tr.Stream(ctx, prompt("hi"))
			Expect(err).NotTo(HaveOccurred())
			body.Close()
		})

		It("returns the JSON error message of a non-2xx response", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"error":"model overloaded"}`)
			})

			_, err := tr.Stream(context.Background(), prompt("hi"))

			var terr *TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(terr.Message).To(Equal("model overloaded"))
			Expect(terr.Retryable()).To(BeTrue())
			Expect(terr.BeforeFirstByte()).To(BeTrue())
		})

		It("falls back to the raw body or status text", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "no such model", http.StatusBadRequest)
			})
			mux.HandleFunc("POST "+DefaultCompletePath, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})

			_, err := tr.Stream(context.Background(), prompt("hi"))
			var terr *TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Message).To(Equal("no such model"))
			Expect(terr.Retryable()).To(BeFalse())

			_, err = tr.Complete(context.Background(), prompt("hi"))
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Message).To(Equal("Unauthorized"))
		})

		It("reports an unreachable backend as a network failure", func() {
			server.Close()

			_, err := tr.Stream(context.Background(), prompt("hi"))

			var terr *TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.StatusCode).To(Equal(0))
			Expect(terr.Err).To(HaveOccurred())
			Expect(terr.BeforeFirstByte()).To(BeTrue())
		})
	})

	Describe("Complete", func() {
		DescribeTable("extracts the response text",
			func(body, expected string) {
				mux.HandleFunc("POST "+DefaultCompletePath, func(w http.ResponseWriter, r *http.Request) {
					defer GinkgoRecover()
					Expect(r.Header.Get("Accept")).To(Equal("application/json"))
					Expect(decodeRequest(r).Stream).To(BeFalse())
					fmt.Fprint(w, body)
				})

				text, err := tr.Complete(context.Background(), prompt("hi"))
				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal(expected))
			},
			Entry("content", `{"content":"a"}`, "a"),
			Entry("text", `{"text":"b"}`, "b"),
			Entry("response", `{"response":"c"}`, "c"),
			Entry("message object", `{"message":{"role":"assistant","content":"d"}}`, "d"),
		)

		It("reports an undecodable body", func() {
			mux.HandleFunc("POST "+DefaultCompletePath, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "not json")
			})

			_, err := tr.Complete(context.Background(), prompt("hi"))

			var terr *TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.BeforeFirstByte()).To(BeFalse())
		})

		It("applies the configured timeout", func() {
			release := make(chan struct{})
			DeferCleanup(func() { close(release) })

			mux.HandleFunc("POST "+DefaultCompletePath, func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			})

			tr = NewHTTPTransport(HTTPTransportConfig{Target: server.URL, Timeout: 50 * time.Millisecond})
			_, err := tr.Complete(context.Background(), prompt("hi"))

			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	Describe("with a Controller", func() {
		It("streams a flushed event stream end to end", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, _ *http.Request) {
				flusher := w.(http.Flusher)
				w.Header().Set("Content-Type", "text/event-stream")
				for _, chunk := range []string{
					"data: {\"content\":\"# Report\\n\"}\n\n",
					"data: {\"content\":\"- one\\n- two\"}\n\n",
					"data: [DONE]\n\n",
				} {
					fmt.Fprint(w, chunk)
					flusher.Flush()
				}
			})

			rec := &recorder{}
			ctrl := NewController(tr, WithFrames(TimerFrames{Interval: time.Millisecond}))

			text, err := ctrl.Send(context.Background(), prompt("hi"), rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("# Report\n- one\n- two"))
			Expect(rec.LastRender()).To(Equal("<h1>Report</h1><ul><li>one</li><li>two</li></ul>"))
		})

		It("falls back to the complete endpoint when streaming is refused", func() {
			mux.HandleFunc("POST "+DefaultStreamPath, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})
			mux.HandleFunc("POST "+DefaultCompletePath, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"content":"**ok**"}`)
			})

			rec := &recorder{}
			text, err := NewController(tr).Send(context.Background(), prompt("hi"), rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("**ok**"))
			Expect(rec.Renders()).To(Equal([]string{"<p><strong>ok</strong></p>"}))
		})
	})
})
