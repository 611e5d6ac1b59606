package unifi

import "errors"

// LoginRequiredMsg is the controller message for a missing or expired
// session.
const LoginRequiredMsg = "api.err.LoginRequired"

// ErrLoginRequired matches, via errors.Is, any *APIError whose message
// is LoginRequiredMsg.
var ErrLoginRequired = errors.New("login required")

// APIError is an error reported by the controller in a response
// envelope with rc "error". Msg is the controller's message verbatim.
type APIError struct {
	Msg string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return "unknown error"
	}
	return e.Msg
}

// LoginRequired reports whether the controller rejected the request
// because the session is missing or expired.
func (e *APIError) LoginRequired() bool {
	return e.Msg == LoginRequiredMsg
}

// Is lets errors.Is(err, ErrLoginRequired) classify controller errors.
func (e *APIError) Is(target error) bool {
	return target == ErrLoginRequired && e.LoginRequired()
}
