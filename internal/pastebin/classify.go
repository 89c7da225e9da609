package pastebin

import "strings"

// sentinelPrefix starts every provider-level error Pastebin returns.
const sentinelPrefix = "Bad API request,"

// knownErrors maps sentinel remainders to their specific kinds. Anything not
// listed is KindProvider.
var knownErrors = map[string]Kind{
	"invalid api_user_key": KindInvalidSessionKey,
	"invalid api_dev_key":  KindInvalidAPIKey,
}

// Classify turns a response body into an outcome. Bodies that start with the
// error sentinel become an *APIError; everything else is returned unchanged.
func Classify(body string) (string, error) {
	rest, ok := strings.CutPrefix(body, sentinelPrefix)
	if !ok {
		return body, nil
	}

	rest = strings.TrimSpace(rest)
	if kind, ok := knownErrors[rest]; ok {
		return "", &APIError{Kind: kind, Message: rest}
	}
	return "", &APIError{Kind: KindProvider, Message: rest}
}
