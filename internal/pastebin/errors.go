package pastebin

import "errors"

// Kind classifies a provider-level failure.
type Kind string

const (
	// KindInvalidSessionKey means Pastebin rejected api_user_key.
	KindInvalidSessionKey Kind = "invalid_session_key"
	// KindInvalidAPIKey means Pastebin rejected api_dev_key.
	KindInvalidAPIKey Kind = "invalid_api_key"
	// KindProvider covers every other "Bad API request" message.
	KindProvider Kind = "provider_error"
)

var (
	// ErrInvalidSessionKey is matched by APIErrors of KindInvalidSessionKey.
	ErrInvalidSessionKey = errors.New("invalid session key")
	// ErrInvalidAPIKey is matched by APIErrors of KindInvalidAPIKey.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrProvider is matched by APIErrors of KindProvider.
	ErrProvider = errors.New("pastebin api error")

	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("pastebin api key is required")
	// ErrInvalidEndpoint is returned by Call for an endpoint it cannot dispatch
	// to. Nothing is sent and no rate-limit slot is used.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// APIError is a transport-successful response that carried Pastebin's
// "Bad API request," sentinel.
type APIError struct {
	Kind    Kind
	Message string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindInvalidSessionKey:
		return "pastebin rejected the session key (" + e.Message + "): log in again or refresh the session key"
	case KindInvalidAPIKey:
		return "pastebin rejected the api key (" + e.Message + "): check the configured api key"
	default:
		return "pastebin api error: " + e.Message
	}
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case KindInvalidSessionKey:
		return ErrInvalidSessionKey
	case KindInvalidAPIKey:
		return ErrInvalidAPIKey
	default:
		return ErrProvider
	}
}
