package services

import (
	"fmt"
	"strings"

	"github.com/jmwangi/pesalink-gateway/internal/config"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

// Trust is the classification of an inbound callback.
type Trust int

const (
	Trusted Trust = iota
	Untrusted
	Malformed
)

// Verdict carries the classification plus a human-readable reason for the
// non-trusted cases.
type Verdict struct {
	Trust  Trust
	Reason string
}

// CallbackValidator authenticates inbound callbacks. Two mechanisms exist,
// each enabled by configuration and independent of the other: an exact
// origin allowlist and a shared-secret token. When both are enabled, both
// must pass. With neither enabled every well-formed callback is trusted,
// which matches deployments that fence the endpoint at the network layer
// instead.
type CallbackValidator struct {
	origins map[string]struct{}
	secret  string
}

func NewCallbackValidator(cfg config.CallbackConfig) *CallbackValidator {
	origins := make(map[string]struct{})
	for _, o := range cfg.Origins() {
		origins[o] = struct{}{}
	}
	return &CallbackValidator{
		origins: origins,
		secret:  cfg.SharedSecret,
	}
}

func (v *CallbackValidator) Validate(event *domain.CallbackEvent) Verdict {
	if event.ClaimedKey == "" {
		return Verdict{Trust: Malformed, Reason: "missing checkout request id"}
	}

	if len(v.origins) > 0 {
		if _, ok := v.origins[event.SourceOrigin]; !ok {
			return Verdict{
				Trust:  Untrusted,
				Reason: fmt.Sprintf("origin %q not in allowlist", event.SourceOrigin),
			}
		}
	}

	if v.secret != "" && event.AuthToken != v.secret {
		return Verdict{Trust: Untrusted, Reason: "auth token mismatch"}
	}

	return Verdict{Trust: Trusted}
}

// ClientOrigin extracts the original client origin: the first entry of a
// forwarded-for chain when an intermediary added one, otherwise the direct
// peer address.
func ClientOrigin(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}

	// remoteAddr is host:port; strip the port.
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
