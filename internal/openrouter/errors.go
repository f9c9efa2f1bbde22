package openrouter

import "fmt"

// Kind classifies a provider failure.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindNetwork       Kind = "network"
	KindRateLimit     Kind = "rate_limit"
	KindQuota         Kind = "quota"
	KindBadRequest    Kind = "bad_request"
	KindUnavailable   Kind = "unavailable"
	KindEmptyResponse Kind = "empty_response"
	KindUnknown       Kind = "unknown"
)

// APIError is a classified failure from the OpenRouter API.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// errorForStatus maps a non-2xx HTTP status to an APIError with a
// human-readable message.
func errorForStatus(status int, detail string) *APIError {
	switch status {
	case 401:
		return &APIError{Kind: KindAuth, StatusCode: status, Message: "Invalid API key"}
	case 429:
		return &APIError{Kind: KindRateLimit, StatusCode: status, Message: "Rate limit exceeded. Please try again later."}
	case 402:
		return &APIError{Kind: KindQuota, StatusCode: status, Message: "Insufficient credits. Please check your OpenRouter account."}
	case 400:
		if detail == "" {
			detail = "Invalid request format"
		}
		return &APIError{Kind: KindBadRequest, StatusCode: status, Message: fmt.Sprintf("Bad request: %s", detail)}
	case 503:
		return &APIError{Kind: KindUnavailable, StatusCode: status, Message: "Service temporarily unavailable. Please try again later."}
	default:
		if detail == "" {
			detail = "Unknown error"
		}
		return &APIError{Kind: KindUnknown, StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, detail)}
	}
}

// networkError wraps a transport-level failure.
func networkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: fmt.Sprintf("Network error: %v", err)}
}
