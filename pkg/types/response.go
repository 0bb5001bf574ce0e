package types

// SuccessEnvelope wraps every 2xx JSON body. Handlers never write bare
// payloads; clients always unwrap "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure. Code matches the pkg/errors
// code for the failure class and Message is the sanitized public message,
// never the internal error text.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
