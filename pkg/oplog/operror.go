package oplog

import "errors"

// Categories for serializable operation errors. Transport and provider
// failures are facts to record and replay, not exceptions to swallow.
const (
	CategoryTransport = "transport" // operation failed to reach or complete against its dependency
	CategoryProvider  = "provider"  // the dependency returned a structured failure
	CategoryUnknown   = "unknown"   // unclassified error from the wrapped operation
)

// OpError is the serializable form of an error returned by a wrapped
// operation. Live calls return the original error unchanged; OpError is
// what gets recorded and what replay hands back.
type OpError struct {
	Category string         `json:"category"`
	Code     string         `json:"code,omitempty"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

func (e *OpError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Transport constructs a transport-category error.
func Transport(code, message string) *OpError {
	return &OpError{Category: CategoryTransport, Code: code, Message: message}
}

// Provider constructs a provider-category error.
func Provider(code, message string, details map[string]any) *OpError {
	return &OpError{Category: CategoryProvider, Code: code, Message: message, Details: details}
}

// FromError converts any error into its serializable form. If err is
// already an *OpError it is returned as-is; anything else becomes an
// unknown-category error carrying the message.
func FromError(err error) *OpError {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe
	}
	return &OpError{Category: CategoryUnknown, Message: err.Error()}
}
