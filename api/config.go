// Package api provides the HTTP server that renders markdown, bridges chat
// streams to browsers as server-sent events and serves response history.
package api

import "time"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Strict runs every rendered fragment through markdown.Policy.
	Strict bool

	// FrameInterval paces render frames on /stream. Zero uses
	// stream.DefaultFrameInterval.
	FrameInterval time.Duration
}
