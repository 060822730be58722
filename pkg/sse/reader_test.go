package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) {
	return 0, nil
}

var _ = Describe("ChunkReader", func() {
	It("returns chunks as the source delivers them", func() {
		r := NewChunkReader(iotest.OneByteReader(strings.NewReader("ab")), nil)

		chunk, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(chunk).To(Equal([]byte("a")))

		chunk, err = r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(chunk).To(Equal([]byte("b")))

		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("tees every byte to the destination verbatim", func() {
		src := "event: x\r\ndata: {\"content\":\"é\"}\n\n: ping\n"
		dst := &bytes.Buffer{}
		r := NewChunkReader(iotest.HalfReader(strings.NewReader(src)), dst)

		var got []byte
		for {
			chunk, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			got = append(got, chunk...)
		}

		Expect(string(got)).To(Equal(src))
		Expect(dst.String()).To(Equal(src))
	})

	It("returns data delivered together with EOF before reporting EOF", func() {
		r := NewChunkReader(iotest.DataErrReader(strings.NewReader("data: x\n")), nil)

		chunk, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(Equal("data: x\n"))

		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("returns chunks the caller may keep", func() {
		r := NewChunkReader(iotest.OneByteReader(strings.NewReader("xy")), nil)
		first, _ := r.Next()
		_, _ = r.Next()
		Expect(first).To(Equal([]byte("x")))
	})

	It("surfaces source errors", func() {
		r := NewChunkReader(iotest.ErrReader(errors.New("reset by peer")), nil)
		_, err := r.Next()
		Expect(err).To(MatchError("reset by peer"))
	})

	It("surfaces destination errors", func() {
		r := NewChunkReader(strings.NewReader("data: x\n"), failingWriter{})
		_, err := r.Next()
		Expect(err).To(MatchError("disk full"))
	})

	It("gives up on a source that never makes progress", func() {
		r := NewChunkReader(emptyReader{}, nil)
		_, err := r.Next()
		Expect(err).To(MatchError(io.ErrNoProgress))
	})

	It("feeds a decoder end to end", func() {
		body := "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n"
		r := NewChunkReader(iotest.OneByteReader(strings.NewReader(body)), nil)
		d := NewDecoder()

		var text strings.Builder
		done := false
		for !done {
			chunk, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			for _, ev := range d.Feed(chunk) {
				switch ev.Kind {
				case KindDelta:
					text.WriteString(ev.Text)
				case KindDone:
					done = true
				}
			}
		}
		Expect(text.String()).To(Equal("Hello"))
	})
})
