package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
)

func TestNegotiateAndConnectURL(t *testing.T) {
	base, err := url.Parse("https://livetiming.example.com/signalr/")
	require.NoError(t, err)

	neg := negotiateURL(base)
	assert.Equal(t, "https", neg.Scheme)
	assert.Equal(t, "/signalr/negotiate", neg.Path)
	assert.Equal(t, "1.5", neg.Query().Get("clientProtocol"))
	assert.Equal(t, `[{"name":"streaming"}]`, neg.Query().Get("connectionData"))

	ws := connectURL(base, "a+b/c=")
	assert.Equal(t, "wss", ws.Scheme)
	assert.Equal(t, "/signalr/connect", ws.Path)
	assert.Equal(t, "webSockets", ws.Query().Get("transport"))
	assert.Equal(t, "a+b/c=", ws.Query().Get("connectionToken"))
	assert.Equal(t, "1.5", ws.Query().Get("clientProtocol"))

	plain, err := url.Parse("http://localhost:8090/signalr/")
	require.NoError(t, err)
	assert.Equal(t, "ws", connectURL(plain, "t").Scheme)
}

func TestNegotiateKeepAliveTimeout(t *testing.T) {
	unbounded := constants.UnboundedKeepAliveTimeout
	tenSeconds := 10 * time.Second
	halfSecond := 500 * time.Millisecond

	tests := []struct {
		name string
		body string
		want *time.Duration
	}{
		{name: "number", body: `{"ConnectionToken":"t","KeepAliveTimeout":10.0}`, want: &tenSeconds},
		{name: "fraction", body: `{"ConnectionToken":"t","KeepAliveTimeout":0.5}`, want: &halfSecond},
		{name: "null", body: `{"ConnectionToken":"t","KeepAliveTimeout":null}`, want: &unbounded},
		{name: "absent", body: `{"ConnectionToken":"t"}`},
		{name: "not a number", body: `{"ConnectionToken":"t","KeepAliveTimeout":"20"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL + "/signalr/"}, nil, logger.Nop())
			require.NoError(t, err)

			neg, err := c.negotiate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "t", neg.token)
			assert.Equal(t, tt.want, neg.keepAlive)
		})
	}
}

func TestNegotiateCapturesCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "ARRAffinity", Value: "abc", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "xyz", HttpOnly: true})
		_, _ = w.Write([]byte(`{"ConnectionToken":"t"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/signalr/"}, nil, logger.Nop())
	require.NoError(t, err)

	neg, err := c.negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ARRAffinity=abc; session=xyz", neg.cookie)
}
