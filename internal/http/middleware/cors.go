package middleware

import (
	"net/http"
	"strings"
)

// Browser-facing surface of the portal API. X-Request-ID is exposed so the
// front-end can quote the correlation id of a failed appointment request.
const (
	portalAllowedMethods = "GET, POST, DELETE, OPTIONS"
	portalExposedHeaders = "X-Request-ID"
)

var portalAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}

// OriginPolicy is the set of front-end origins allowed to call the portal.
// The same policy guards the CORS headers and the notification websocket
// handshake. A "*" entry allows any origin.
type OriginPolicy struct {
	allowAny bool
	allowed  map[string]struct{}
}

// NewOriginPolicy normalizes origins, dropping blanks and trailing slashes.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.allowed[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

// Enabled reports whether any origin was configured.
func (p *OriginPolicy) Enabled() bool {
	return p != nil && (p.allowAny || len(p.allowed) > 0)
}

// Allows reports whether a browser at origin may use the portal.
func (p *OriginPolicy) Allows(origin string) bool {
	if p == nil {
		return false
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}
	if p.allowAny {
		return true
	}
	_, ok := p.allowed[strings.ToLower(origin)]
	return ok
}

// CORS answers browser preflights for the portal routes and tags responses
// to allowed origins. Preflights from other origins get 403.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			preflight := r.Method == http.MethodOptions && origin != "" &&
				r.Header.Get("Access-Control-Request-Method") != ""

			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if !policy.Allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", portalExposedHeaders)
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Methods", portalAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedRequestHeaders(r.Header.Get("Access-Control-Request-Headers")))
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// allowedRequestHeaders keeps the requested headers the portal accepts,
// falling back to the full list when none were requested.
func allowedRequestHeaders(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return strings.Join(portalAllowedHeaders, ", ")
	}
	var out []string
	for _, h := range strings.Split(requested, ",") {
		h = strings.TrimSpace(h)
		for _, allowed := range portalAllowedHeaders {
			if strings.EqualFold(h, allowed) {
				out = append(out, allowed)
				break
			}
		}
	}
	return strings.Join(out, ", ")
}
