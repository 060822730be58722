package sse

import (
	"io"
)

const (
	defaultChunkSize = 32 * 1024

	// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
	maxEmptyReads = 100
)

// ChunkReader is a pull iterator over raw transport chunks that also writes
// every byte it returns verbatim to an optional destination writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌────────────────────┐   ┌───────────────────────┐
// │ ChunkReader.Next() │──▶│ destination io.Writer │
// └────────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │ Decoder.Feed     │
// └──────────────────┘
//
// The destination typically records a transcript of the stream.
type ChunkReader struct {
	src  io.Reader
	dest io.Writer
	buf  []byte

	// err is a source error that arrived together with data.
	err error
}

// NewChunkReader returns a ChunkReader reading from src. dest may be nil.
func NewChunkReader(src io.Reader, dest io.Writer) *ChunkReader {
	return &ChunkReader{
		src:  src,
		dest: dest,
		buf:  make([]byte, defaultChunkSize),
	}
}

// Next blocks until the source yields bytes and returns them as a new slice
// the caller may keep. At end of data it returns nil, io.EOF; any other
// source or destination error is returned as is.
func (r *ChunkReader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	for range maxEmptyReads {
		n, err := r.src.Read(r.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, r.buf[:n])

			if r.dest != nil {
				if _, werr := r.dest.Write(chunk); werr != nil {
					return nil, werr
				}
			}

			r.err = err
			return chunk, nil
		}
		if err != nil {
			r.err = err
			return nil, err
		}
	}

	return nil, io.ErrNoProgress
}
