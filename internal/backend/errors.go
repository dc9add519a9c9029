package backend

import "fmt"

// StatusError reports a non-2xx response from a backend endpoint.
// Step names the handshake step so the operator message can identify
// which request failed.
type StatusError struct {
	Step string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status %d", e.Step, e.Code)
}
