package connectors

import (
	"errors"
	"fmt"
	"time"
)

// ErrProductUnavailable: поставщик не может выполнить заказ (ретраить бессмысленно).
var ErrProductUnavailable = errors.New("product unavailable")

// ThrottleError: поставщик попросил подождать (Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}
