package pastebin

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

// execute performs the exchange and returns the whole body as text. Transport
// failures come back untouched; no status code is interpreted here.
func (a *Agent) execute(req *http.Request) (body string, statusCode int, err error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), resp.StatusCode, nil
}

// classifyTransportError categorizes an HTTP client error for logs and
// metrics.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Op == "dial" {
			return "connection_refused"
		}
		return "network"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	return "other"
}
