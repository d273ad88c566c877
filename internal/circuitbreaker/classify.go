package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// statusError is any error carrying an HTTP status from the upstream.
type statusError interface {
	HTTPStatus() int
}

// Weigh maps a call error to its breaker weight.
//
//   - timeouts -> 1.5 (the most expensive failure mode to discover)
//   - 5xx and network errors -> 1.0
//   - 429 -> 0.5
//   - other 4xx -> 0.0 (caller fault, not upstream health)
//   - nil -> 0.0
func Weigh(err error) float64 {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}
	var se statusError
	if errors.As(err, &se) {
		return weighStatus(se.HTTPStatus())
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return 1.0
	}
	return 1.0
}

func weighStatus(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500:
		return 1.0
	default:
		return 0.0
	}
}
