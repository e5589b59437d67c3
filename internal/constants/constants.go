// Package constants defines the live timing endpoints, SignalR protocol
// values, request headers, data stream names, and default timeout/interval
// values used throughout the connector.
package constants

import "time"

const (
	// LiveTimingBaseURL is the SignalR endpoint of the live timing service.
	LiveTimingBaseURL = "https://livetiming.formula1.com/signalr/"
	// NegotiatePath is resolved against the base URL for the HTTP handshake.
	NegotiatePath = "negotiate"
	// ConnectPath is resolved against the websocket base URL for the upgrade.
	ConnectPath = "connect"
)

const (
	// ClientProtocol is the SignalR protocol version spoken by the hub.
	ClientProtocol = "1.5"
	// ConnectionData selects the streaming hub during negotiation and connect.
	ConnectionData = `[{"name":"streaming"}]`
	// TransportWebSockets is the only transport this client uses.
	TransportWebSockets = "webSockets"

	// HubName is the server hub addressed by the subscribe call.
	HubName = "Streaming"
	// SubscribeMethod is the hub method that starts the feed.
	SubscribeMethod = "Subscribe"
	// FeedMethod is the client method the hub invokes for each update.
	FeedMethod = "feed"
	// SubscribeInvocationID identifies the subscribe call in the hub response.
	SubscribeInvocationID = 1
)

const (
	// UserAgent is required by the upstream server to select the wire format.
	UserAgent = "BestHTTP"
	// AcceptEncoding is sent on the websocket upgrade request.
	AcceptEncoding = "gzip,identity"
)

// DataStreams are the categories requested in the subscribe call.
var DataStreams = []string{
	"Heartbeat",
	"ExtrapolatedClock",
	"TopThree",
	"RcmSeries",
	"TimingStats",
	"TimingAppData",
	"TeamRadio",
	"WeatherData",
	"TrackStatus",
	"DriverList",
	"RaceControlMessages",
	"SessionInfo",
	"SessionData",
	"LapCount",
	"TimingData",
	"PitLaneTimeCollection",
	"CarData.z",
	"Position.z",
	"ChampionshipPrediction",
	"PitStopSeries",
	"PitStop",
}

const (
	// CategorySessionInfo carries the session status and meeting details.
	CategorySessionInfo = "SessionInfo"
	// CategorySessionData carries the session status series.
	CategorySessionData = "SessionData"
	// CategoryExtrapolatedClock carries the server clock used for snapshot timestamps.
	CategoryExtrapolatedClock = "ExtrapolatedClock"
	// CompressedSuffix marks a category whose payload is base64 + raw DEFLATE.
	CompressedSuffix = ".z"
)

const (
	// DefaultKeepAliveTimeout applies until negotiation reports a value.
	DefaultKeepAliveTimeout = 30 * time.Second
	// UnboundedKeepAliveTimeout applies when negotiation reports KeepAliveTimeout=null.
	UnboundedKeepAliveTimeout = 365 * 24 * time.Hour
	// DefaultConnectWait bounds the wait for the init message after the upgrade.
	DefaultConnectWait = 20 * time.Second
	// DefaultConnectPollInterval is how often the connect wait re-checks the state.
	DefaultConnectPollInterval = time.Second
	// DefaultKeepAliveInterval is the tick of the hub keep-alive/reconnect loop.
	DefaultKeepAliveInterval = time.Second
	// DefaultHandshakeTimeout bounds the negotiate request and the websocket dial.
	DefaultHandshakeTimeout = 30 * time.Second
	// MaxConsecutiveErrors is the number of reconnect failures tolerated before giving up.
	MaxConsecutiveErrors = 9
	// DefaultReadLimit is the largest message accepted from the hub.
	DefaultReadLimit = 16 << 20 // 16 MB
	// DefaultCloseGrace bounds the wait for the peer to answer a close frame.
	DefaultCloseGrace = time.Second
)

const (
	// DefaultSupervisorInterval is the tick of the session supervisor loop.
	DefaultSupervisorInterval = 2 * time.Second
	// DefaultSessionGracePeriod is how long an unknown session state is tolerated.
	DefaultSessionGracePeriod = 60 * time.Second
	// DefaultDataRecency keeps the connection open while data keeps flowing.
	DefaultDataRecency = 30 * time.Second
	// DefaultIdleReconnect is how long to idle before re-checking for a session.
	DefaultIdleReconnect = 20 * time.Minute
	// MinIdleReconnect and MaxIdleReconnect bound the idle reconnect interval.
	MinIdleReconnect = 10 * time.Minute
	MaxIdleReconnect = 20 * time.Minute
)

const (
	// DefaultHTTPPort is the port of the status server.
	DefaultHTTPPort = 8080
	// DefaultMessageQueueSize is the number of recent messages kept for /status.
	DefaultMessageQueueSize = 10
	// DefaultRateWindow bounds the per-second rate history.
	DefaultRateWindow = 30 * time.Minute
	// DefaultGracefulShutdownTimeout bounds the HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 10 * time.Second
	// DefaultSinkBuffer is the per-sink delivery queue length.
	DefaultSinkBuffer = 1024
	// DefaultNATSSubjectPrefix prefixes the per-category subject.
	DefaultNATSSubjectPrefix = "livetiming"
	// DefaultStorageTable receives persisted messages.
	DefaultStorageTable = "live_timing_messages"
	// DefaultMetricsInterval is the export period of the stdout metrics reader.
	DefaultMetricsInterval = time.Minute
)

const (
	// DefaultReplayInterval is the delay between replayed log lines in the mock hub.
	DefaultReplayInterval = 300 * time.Millisecond
	// DefaultMockKeepAliveTimeout is announced by the mock hub during negotiation.
	DefaultMockKeepAliveTimeout = 20 * time.Second
	// DefaultMockListenAddr is the listen address of the mock hub.
	DefaultMockListenAddr = ":8090"
)
