package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/stats"
)

const (
	noSessionInfo   = "No session info available"
	shortMessageLen = 100
)

func (s *StatusServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML) //nolint:errcheck
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"connected": s.hub.IsConnected(),
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sess := s.session.Status()

	resp := statusResponse{
		ConnectorStatus:   sess.State.Description(),
		LastSessionCheck:  sess.LastSessionCheck.Unix(),
		OperationalStatus: s.hub.Operational().String(),
		ConnectionStatus:  s.hub.ConnectionState().String(),
		SessionStatus:     noSessionInfo,
		ArchiveStatus:     noSessionInfo,
		MeetingName:       noSessionInfo,
		SessionType:       noSessionInfo,
		SessionStartDate:  noSessionInfo,
		SessionEndDate:    noSessionInfo,
		Messages:          []messageEntry{},
		RatePerSecond:     []rateEntry{},
		RatePerMinute:     []rateEntry{},
	}
	if sess.HasInfo {
		resp.SessionStatus = sess.Info.Status
		resp.ArchiveStatus = sess.Info.ArchiveStatus
		resp.MeetingName = sess.Info.MeetingName
		resp.SessionType = sess.Info.Type
		resp.SessionStartDate = sess.Info.StartDate
		resp.SessionEndDate = sess.Info.EndDate
	}

	if s.stats != nil {
		resp.Messages = lo.Map(s.stats.Recent(), func(m model.LiveTimingMessage, _ int) messageEntry {
			return messageEntry{
				TimestampEpoch: m.Timestamp.Unix(),
				Category:       m.Category,
				MessageShort:   truncate(m.Payload, shortMessageLen),
				Message:        m.Payload,
			}
		})
		resp.RatePerSecond = lo.Map(s.stats.PerSecond(), toRateEntry)
		resp.RatePerMinute = lo.Map(s.stats.PerMinute(), toRateEntry)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleMessages streams decoded messages as server-sent events. The
// optional category query parameter is a comma separated allow list.
func (s *StatusServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "message stream disabled"})
		return
	}

	var allow map[string]bool
	if q := r.URL.Query().Get("category"); q != "" {
		allow = make(map[string]bool)
		for _, c := range strings.Split(q, ",") {
			if c = strings.TrimSpace(c); c != "" {
				allow[c] = true
			}
		}
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn("Event stream not supported", "error", err)
		return
	}

	ch, cancel := s.messages.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if allow != nil && !allow[msg.Category] {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte(formatEvent("message", string(data)))); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// formatEvent renders one server-sent event.
func formatEvent(event, data string) string {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func toRateEntry(p stats.RatePoint, _ int) rateEntry {
	return rateEntry{TimestampEpoch: p.At.Unix(), Count: p.Count}
}

type statusResponse struct {
	ConnectorStatus   string         `json:"connectorStatus"`
	LastSessionCheck  int64          `json:"connectorLastSessionCheckEpoch"`
	OperationalStatus string         `json:"connectorOperationalStatus"`
	ConnectionStatus  string         `json:"connectorConnectionStatus"`
	SessionStatus     string         `json:"sessionStatus"`
	ArchiveStatus     string         `json:"archiveStatus"`
	MeetingName       string         `json:"meetingName"`
	SessionType       string         `json:"sessionType"`
	SessionStartDate  string         `json:"sessionStartDate"`
	SessionEndDate    string         `json:"sessionEndDate"`
	Messages          []messageEntry `json:"messages"`
	RatePerSecond     []rateEntry    `json:"messageRatePerSecond"`
	RatePerMinute     []rateEntry    `json:"messageRatePerMinute"`
}

type messageEntry struct {
	TimestampEpoch int64  `json:"timestampEpoch"`
	Category       string `json:"category"`
	MessageShort   string `json:"messageShort"`
	Message        string `json:"message"`
}

type rateEntry struct {
	TimestampEpoch int64 `json:"timestampEpoch"`
	Count          int64 `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
