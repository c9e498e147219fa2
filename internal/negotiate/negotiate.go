// Package negotiate decides whether a stored image is served as-is or as its
// transcoded PNG, based on request headers and an explicit URL extension.
package negotiate

import (
	"net/http"
	"strings"
)

// Gecko-based browsers are the engine family that cannot display WebP here;
// its User-Agent marker drives the fallback.
const geckoMarker = "Gecko"

// VaryHeader is set on every negotiated response so intermediary caches key
// on the headers the decision depends on.
const VaryHeader = "User-Agent, Accept"

// Variant selects which representation of the object to serve.
type Variant int

const (
	// Original serves the stored bytes verbatim.
	Original Variant = iota

	// PNG serves the transcoded PNG sibling.
	PNG
)

// Request carries the inputs of one negotiation decision.
type Request struct {
	// MIME is the sniffed type of the stored object.
	MIME string

	// PhysicalPath is the object's on-disk location.
	PhysicalPath string

	// Method is the HTTP request method.
	Method string

	// Accept and UserAgent are the raw request headers.
	Accept    string
	UserAgent string

	// Ext is the explicit extension present in the requested URL,
	// including the leading dot, or "".
	Ext string
}

// Decision is the outcome of negotiation.
type Decision struct {
	// Variant is the representation to serve.
	Variant Variant

	// Vary is the Vary header value to set, or "" when the response does
	// not depend on request headers.
	Vary string
}

// Decide applies the negotiation rules:
//
//   - Objects that are not WebP, non-GET requests, and paths already ending
//     in .png are served verbatim with no Vary header.
//   - A WebP object goes out as-is when the client advertises WebP support
//     (Accept contains image/webp, or the User-Agent is not Gecko-based),
//     unless the URL carries an explicit .png extension.
//   - An explicit .png extension always forces PNG output.
func Decide(req Request) Decision {
	if strings.HasSuffix(req.PhysicalPath, ".png") ||
		req.Method != http.MethodGet ||
		req.MIME != "image/webp" {
		return Decision{Variant: Original}
	}

	acceptsWebP := strings.Contains(strings.ToLower(req.Accept), "image/webp")
	geckoClient := strings.Contains(req.UserAgent, geckoMarker)
	if (acceptsWebP || !geckoClient) && req.Ext != ".png" {
		return Decision{Variant: Original, Vary: VaryHeader}
	}
	return Decision{Variant: PNG, Vary: VaryHeader}
}
