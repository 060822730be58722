package sse

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func delta(text string) Event {
	return Event{Kind: KindDelta, Text: text}
}

func feedAll(d *Decoder, chunks ...string) []Event {
	var events []Event
	for _, c := range chunks {
		events = append(events, d.Feed([]byte(c))...)
	}
	return events
}

var _ = Describe("Decoder", func() {
	var d *Decoder

	BeforeEach(func() {
		d = NewDecoder()
	})

	Describe("Feed", func() {
		Context("with data lines", func() {
			It("decodes a plain string payload as a delta", func() {
				Expect(d.Feed([]byte("data: hello\n\n"))).To(Equal([]Event{delta("hello")}))
			})

			It("extracts text fields in priority order", func() {
				events := feedAll(d,
					"data: {\"content\":\"a\",\"text\":\"b\",\"chunk\":\"c\"}\n",
					"data: {\"text\":\"b\",\"chunk\":\"c\"}\n",
					"data: {\"chunk\":\"c\"}\n",
				)
				Expect(events).To(Equal([]Event{delta("a"), delta("b"), delta("c")}))
			})

			It("falls through empty text fields", func() {
				events := feedAll(d,
					"data: {\"content\":\"\",\"text\":\"x\"}\n",
					"data: {\"content\":\"\",\"text\":\"\",\"chunk\":\"y\"}\n",
				)
				Expect(events).To(Equal([]Event{delta("x"), delta("y")}))
			})

			It("decodes a bare JSON string", func() {
				Expect(d.Feed([]byte("data: \"quoted \\u003cb\\u003e\"\n"))).To(Equal([]Event{delta("quoted <b>")}))
			})

			It("ignores JSON without a text field", func() {
				Expect(d.Feed([]byte("data: {\"usage\":{\"tokens\":3}}\ndata: 42\ndata: {\"content\":\"\"}\n"))).To(BeEmpty())
			})

			It("skips non-string text fields", func() {
				Expect(d.Feed([]byte("data: {\"content\":7,\"text\":\"t\"}\n"))).To(Equal([]Event{delta("t")}))
			})

			It("treats malformed JSON as literal text", func() {
				Expect(d.Feed([]byte("data: {\"content\": \"oops\n"))).To(Equal([]Event{delta("{\"content\": \"oops")}))
			})

			It("accepts data lines without a space after the colon", func() {
				Expect(d.Feed([]byte("data:hi\n"))).To(Equal([]Event{delta("hi")}))
			})

			It("strips carriage returns", func() {
				Expect(d.Feed([]byte("data: hi\r\n\r\n"))).To(Equal([]Event{delta("hi")}))
			})

			It("ignores empty payloads", func() {
				Expect(d.Feed([]byte("data:\ndata: \n"))).To(BeEmpty())
			})
		})

		Context("with chunk boundaries", func() {
			It("reassembles a data line split across chunks", func() {
				split := feedAll(d, "data: hel", "lo\n\n")
				Expect(split).To(Equal(NewDecoder().Feed([]byte("data: hello\n\n"))))
				Expect(split).To(Equal([]Event{delta("hello")}))
			})

			It("produces nothing until a line is complete", func() {
				Expect(d.Feed([]byte("data: {\"content\":"))).To(BeEmpty())
				Expect(d.Feed([]byte("\"x\"}"))).To(BeEmpty())
				Expect(d.Feed([]byte("\n"))).To(Equal([]Event{delta("x")}))
			})

			It("reassembles multi-byte characters split inside a chunk", func() {
				b := []byte("data: héllo ✓\n")
				var events []Event
				for i := range b {
					events = append(events, d.Feed(b[i:i+1])...)
				}
				Expect(events).To(Equal([]Event{delta("héllo ✓")}))
			})

			It("decodes several events from one chunk in order", func() {
				events := d.Feed([]byte("data: a\n\ndata: b\n\ndata: c\n\n"))
				Expect(events).To(Equal([]Event{delta("a"), delta("b"), delta("c")}))
			})

			It("never keeps a line terminator in the carry", func() {
				d.Feed([]byte("data: a\ndata: b"))
				Expect(d.carry).To(Equal([]byte("data: b")))
			})
		})

		Context("with completion", func() {
			It("yields exactly one done event for [DONE]", func() {
				Expect(d.Feed([]byte("data: [DONE]\n\n"))).To(Equal([]Event{{Kind: KindDone}}))
			})

			It("stops decoding after done", func() {
				events := d.Feed([]byte("data: a\ndata: [DONE]\ndata: b\n"))
				Expect(events).To(Equal([]Event{delta("a"), {Kind: KindDone}}))
				Expect(d.Halted()).To(BeTrue())
				Expect(d.Feed([]byte("data: c\n"))).To(BeEmpty())
				Expect(d.Flush()).To(BeEmpty())
			})
		})

		Context("with event names", func() {
			It("decodes an error event", func() {
				events := d.Feed([]byte("event: error\ndata: {\"error\":\"rate limited\"}\n\n"))
				Expect(events).To(Equal([]Event{{Kind: KindError, Message: "rate limited"}}))
			})

			It("reads nested error messages", func() {
				events := d.Feed([]byte("event: error\ndata: {\"error\":{\"message\":\"overloaded\"}}\n"))
				Expect(events).To(Equal([]Event{{Kind: KindError, Message: "overloaded"}}))
			})

			It("propagates malformed error payloads instead of rendering them", func() {
				events := d.Feed([]byte("event: error\ndata: upstream exploded\n"))
				Expect(events).To(Equal([]Event{{Kind: KindError, Message: "upstream exploded"}}))
			})

			It("reports an unknown error for an empty payload", func() {
				events := d.Feed([]byte("event: error\ndata:\n"))
				Expect(events).To(Equal([]Event{{Kind: KindError, Message: unknownError}}))
			})

			It("terminates unconditionally after an error", func() {
				events := d.Feed([]byte("event: error\ndata: {\"error\":\"x\"}\ndata: more\n"))
				Expect(events).To(HaveLen(1))
				Expect(d.Feed([]byte("data: ignored\n"))).To(BeEmpty())
			})

			It("applies the event name to the next data line only", func() {
				events := d.Feed([]byte("event: progress\ndata: a\ndata: b\nevent: error\n\ndata: {\"error\":\"late\"}\n"))
				Expect(events).To(Equal([]Event{delta("a"), delta("b"), {Kind: KindError, Message: "late"}}))
			})

			It("treats error-shaped JSON without the error event as data", func() {
				Expect(d.Feed([]byte("data: {\"error\":\"x\"}\n"))).To(BeEmpty())
			})

			It("ignores other fields and comments", func() {
				Expect(d.Feed([]byte(": keep-alive\nid: 7\nretry: 1000\nfoo\n\n"))).To(BeEmpty())
			})
		})
	})

	Describe("Flush", func() {
		It("decodes an unterminated final line", func() {
			Expect(d.Feed([]byte("data: tail"))).To(BeEmpty())
			Expect(d.Flush()).To(Equal([]Event{delta("tail")}))
			Expect(d.Flush()).To(BeEmpty())
		})

		It("returns nothing for an empty carry", func() {
			d.Feed([]byte("data: a\n"))
			Expect(d.Flush()).To(BeEmpty())
		})
	})
})

var _ = Describe("Event", func() {
	It("reports terminal kinds", func() {
		Expect(delta("x").Terminal()).To(BeFalse())
		Expect(Event{Kind: KindDone}.Terminal()).To(BeTrue())
		Expect(Event{Kind: KindError}.Terminal()).To(BeTrue())
	})

	It("converts error events to a ProtocolError", func() {
		Expect(delta("x").Err()).To(BeNil())

		err := Event{Kind: KindError, Message: "boom"}.Err()
		var perr *ProtocolError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Message).To(Equal("boom"))
		Expect(err.Error()).To(Equal("stream error: boom"))
	})

	It("names kinds", func() {
		Expect(KindDelta.String()).To(Equal("delta"))
		Expect(KindDone.String()).To(Equal("done"))
		Expect(KindError.String()).To(Equal("error"))
	})
})
