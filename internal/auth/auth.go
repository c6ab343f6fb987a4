package auth

import (
	"crypto/subtle"
	"strings"
)

// Gate validates the caller-supplied x-api-key credential against the
// configured shared secret. An empty secret means the gateway was started
// without credentials configured; the gate then denies every non-exempt
// request (fail closed) rather than letting traffic through unauthenticated.
type Gate struct {
	secret string
}

// NewGate creates a Gate for the given shared secret.
func NewGate(secret string) *Gate {
	return &Gate{secret: secret}
}

// Configured reports whether a shared secret was provided at startup.
func (g *Gate) Configured() bool {
	return g.secret != ""
}

// Allow reports whether the supplied credential matches the shared secret.
// Comparison is constant-time. Always false when no secret is configured.
func (g *Gate) Allow(key string) bool {
	if g.secret == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(g.secret)) == 1
}

// Exempt reports whether the given request path bypasses the credential check.
// Health and ping endpoints must stay reachable without a key so orchestrators
// can probe liveness; the metrics endpoint is scrape-only and carries no
// weather data.
func (g *Gate) Exempt(path string) bool {
	if path == "/health" || path == "/metrics" {
		return true
	}
	return strings.Contains(path, "/ping")
}
