package web

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/hpungsan/painvault/internal/errors"
)

// extensionSchemes are origins a web page cannot claim; the browser shim
// talks to the bridge from one of them.
var extensionSchemes = []string{"chrome-extension://", "moz-extension://", "safari-web-extension://"}

// rejectCrossSite refuses state-changing requests that a browser sent on
// behalf of another site, so a page the user visits cannot post captures to
// their webhook or purge their stats. Requests without Origin and
// Sec-Fetch-Site come from non-browser clients and pass.
func rejectCrossSite(allowed []string, renderer *Renderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || originAllowed(r, allowed) {
				next.ServeHTTP(w, r)
				return
			}
			renderer.logger.Warn("cross-site request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
			)
			renderer.renderError(w, r, errors.NewForbidden("cross-site request rejected"))
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSuffix(r.Header.Get("Origin"), "/")
	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return true
	case "":
		if origin == "" {
			return true
		}
	}
	if origin == "" || origin == "null" {
		return false
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(allowed, origin)
}
