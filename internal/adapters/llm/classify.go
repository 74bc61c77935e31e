package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// Providers do not expose a typed error channel we can rely on across SDKs,
// so classification is a best-effort match on the error text. The tables are
// checked in order; the first kind with a matching pattern wins and anything
// unmatched is domain.GatewayUnknown.
var classificationRules = []struct {
	kind     domain.GatewayErrorKind
	patterns []string
}{
	{domain.GatewayInvalidCredential, []string{
		"api key", "api_key", "apikey", "invalid_api_key",
		"401 unauthorized", "error 401", "unauthenticated", "unauthorized",
		"403 forbidden", "error 403", "permission_denied", "permission denied",
		"invalid credential", "incorrect api key",
	}},
	{domain.GatewayRateLimited, []string{
		"429 too many requests", "error 429", "too many requests",
		"rate limit", "rate_limit", "ratelimit",
		"resource_exhausted", "resource exhausted", "quota",
	}},
	{domain.GatewayTimedOut, []string{
		"deadline exceeded", "deadline_exceeded", "timeout", "timed out",
		"408 request timeout", "error 504", "504 gateway timeout",
	}},
	{domain.GatewayNetworkUnavailable, []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "dial tcp", "econnrefused", "enotfound",
		"503 service unavailable", "error 503", "unavailable",
	}},
	{domain.GatewayContentFiltered, []string{
		"content_filter", "content filter", "content policy", "content_policy",
		"safety", "blocked",
	}},
	{domain.GatewayInvalidRequest, []string{
		"400 bad request", "error 400", "bad request",
		"invalid_argument", "invalid argument", "invalid_request", "invalid request",
	}},
}

// Classify maps a provider failure to a gateway error kind.
func Classify(err error) domain.GatewayErrorKind {
	if err == nil {
		return domain.GatewayUnknown
	}

	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.GatewayTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.GatewayTimedOut
	}

	text := strings.ToLower(err.Error())
	for _, rule := range classificationRules {
		for _, p := range rule.patterns {
			if strings.Contains(text, p) {
				return rule.kind
			}
		}
	}

	return domain.GatewayUnknown
}

// toGatewayError wraps err as a GatewayError, keeping an existing one as is.
func toGatewayError(err error) *domain.GatewayError {
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr
	}
	return domain.NewGatewayError(Classify(err), err)
}
