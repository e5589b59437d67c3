package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/jsonutil"
)

// negotiation is the result of the HTTP handshake.
type negotiation struct {
	token  string
	cookie string
	// keepAlive is nil when the response did not carry KeepAliveTimeout.
	keepAlive *time.Duration
}

func protocolQuery() url.Values {
	q := url.Values{}
	q.Set("connectionData", constants.ConnectionData)
	q.Set("clientProtocol", constants.ClientProtocol)
	return q
}

// negotiateURL resolves the negotiate endpoint against the base URL.
func negotiateURL(base *url.URL) *url.URL {
	return base.ResolveReference(&url.URL{
		Path:     constants.NegotiatePath,
		RawQuery: protocolQuery().Encode(),
	})
}

// connectURL builds the websocket endpoint, swapping http for ws and https
// for wss.
func connectURL(base *url.URL, token string) *url.URL {
	ws := *base
	if strings.EqualFold(base.Scheme, "http") {
		ws.Scheme = "ws"
	} else {
		ws.Scheme = "wss"
	}

	q := protocolQuery()
	q.Set("transport", constants.TransportWebSockets)
	q.Set("connectionToken", token)
	return ws.ResolveReference(&url.URL{
		Path:     constants.ConnectPath,
		RawQuery: q.Encode(),
	})
}

func (c *Connection) negotiate(ctx context.Context) (negotiation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	u := negotiateURL(c.baseURL)
	c.log.Info("Negotiating hub connection", "host", u.Host)
	c.log.Debug("Negotiate request", "url", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return negotiation{}, &NegotiationError{Reason: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return negotiation{}, &NegotiationError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return negotiation{}, &NegotiationError{StatusCode: resp.StatusCode, Reason: "reading body: " + err.Error()}
	}
	c.log.Debug("Negotiate response", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode >= 300 {
		return negotiation{}, &NegotiationError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return negotiation{}, &NegotiationError{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("decoding body: %v", err)}
	}

	if !jsonutil.IsTextual(root["ConnectionToken"]) || jsonutil.Text(root["ConnectionToken"], "") == "" {
		return negotiation{}, &NegotiationError{StatusCode: resp.StatusCode, Reason: "response has no ConnectionToken"}
	}

	result := negotiation{
		token:  jsonutil.Text(root["ConnectionToken"], ""),
		cookie: cookieHeader(resp),
	}

	switch jsonutil.KindOf(root["KeepAliveTimeout"]) {
	case jsonutil.KindNumber:
		secs, err := strconv.ParseFloat(strings.TrimSpace(string(root["KeepAliveTimeout"])), 64)
		if err == nil {
			d := time.Duration(secs * float64(time.Second))
			result.keepAlive = &d
		}
	case jsonutil.KindNull:
		d := constants.UnboundedKeepAliveTimeout
		result.keepAlive = &d
	}

	return result, nil
}

// cookieHeader joins the name=value pairs of every Set-Cookie header.
func cookieHeader(resp *http.Response) string {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
