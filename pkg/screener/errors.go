package screener

import (
	"errors"
	"fmt"
)

// ErrScreenerAPI is returned when a screener page request fails
var ErrScreenerAPI = errors.New("screener api error")

// ScreenerAPIError describes a failed page request. Status is 0 when no
// HTTP response was received.
type ScreenerAPIError struct {
	Status int
	URL    string
	Params map[string]string
	Body   string
	Err    error
}

func (e *ScreenerAPIError) Error() string {
	msg := fmt.Sprintf("%s: status %d", ErrScreenerAPI, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScreenerAPIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrScreenerAPI}
	}
	return []error{ErrScreenerAPI, e.Err}
}

// Throttled reports whether the endpoint signalled load shedding.
func (e *ScreenerAPIError) Throttled() bool {
	return e.Status == 429 || e.Status == 503
}
