package ai

import "errors"

// ErrQuotaExceeded is returned when the explain model refuses a request on quota or rate limits.
var ErrQuotaExceeded = errors.New("ai quota exceeded")
