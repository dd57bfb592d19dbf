package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/wavechat/client/internal/domain/shared"
)

// classifyTransport maps a transport-level failure onto the domain error
// taxonomy. Timeouts and cancellations are transient: they must never flip
// reachability to false. Everything else (refused connection, reset, DNS
// failure) is a definitive protocol-level failure.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", shared.ErrTransientNetwork, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s", shared.ErrTransientNetwork, err)
	}
	return fmt.Errorf("%w: %s", shared.ErrBackendDown, err)
}

// classifyStatus maps an HTTP status onto the domain error taxonomy
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthRejected, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrRouteUnavailable, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrBackendDown, status)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrInvalidInput, status)
	}
}
