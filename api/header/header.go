// Package header selects which browser request headers the /stream bridge
// passes on to the chat backend.
//
//	Browser <--> opsdeck API <--> AI-ops backend
//
// Credentials and tracing headers travel with the chat request. Headers that
// describe the browser's own connection or the bridge's request body do not.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// skipForward is the set of request headers not forwarded to the backend.
var skipForward = map[string]struct{}{
	// Hop-by-hop headers.
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},

	// Rewritten by http.Transport for the backend URL.
	"Host": {},

	// Left to http.Transport so it can decompress the response.
	"Accept-Encoding": {},

	// Describe the browser's request, not the backend's.
	"Accept":         {},
	"Content-Type":   {},
	"Content-Length": {},
	"Origin":         {},
	"Referer":        {},

	// Browser session state stays with the dashboard origin.
	"Cookie": {},

	// Bridge routing.
	"X-Client-Id": {},
}

// Forwarded returns a copy of the request headers of c that should be sent
// to the backend. The copy outlives c.
func Forwarded(c *fiber.Ctx) http.Header {
	h := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipForward[k]; !skip {
			h.Add(k, string(value))
		}
	})
	return h
}
