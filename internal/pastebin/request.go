package pastebin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// newRequest builds the outbound request for one call. The API key is always
// added; the session key only while the agent holds one.
func (a *Agent) newRequest(ctx context.Context, endpoint, method string, params url.Values) (*http.Request, error) {
	form := make(url.Values, len(params)+2)
	for key, values := range params {
		form[key] = append([]string(nil), values...)
	}
	form.Set("api_dev_key", a.apiKey)
	if key := a.SessionKey(); key != "" {
		form.Set("api_user_key", key)
	}
	encoded := form.Encode()

	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	if isWrite(method) {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if u.RawQuery != "" {
			u.RawQuery += "&" + encoded
		} else {
			u.RawQuery = encoded
		}
		// The query now carries credentials; keep it out of error text.
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.URL = u
	}

	req.Header.Set("User-Agent", a.userAgent)
	return req, nil
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// parseEndpoint accepts absolute http(s) URLs only.
func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidEndpoint, endpoint)
	}
	return u, nil
}
