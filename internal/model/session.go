package model

import (
	"strings"
	"time"
)

// Session status values reported by the hub.
const (
	SessionStatusStarted    = "Started"
	SessionStatusFinalised  = "Finalised"
	SessionStatusFinished   = "Finished"
	SessionStatusEnds       = "Ends"
	SessionStatusInactive   = "Inactive"
	SessionStatusAborted    = "Aborted"
	ArchiveStatusGenerating = "Generating"
	ArchiveStatusComplete   = "Complete"
	ArchiveStatusUnknown    = "unknown"
)

// SessionInfo is the merged view of the SessionInfo and SessionData categories.
type SessionInfo struct {
	Status        string    `json:"status"`
	ArchiveStatus string    `json:"archiveStatus"`
	MeetingName   string    `json:"meetingName,omitempty"`
	Type          string    `json:"type,omitempty"`
	Name          string    `json:"name,omitempty"`
	StartDate     string    `json:"startDate,omitempty"`
	EndDate       string    `json:"endDate,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsLive reports whether the status values describe a running session.
func (s SessionInfo) IsLive() bool {
	return strings.EqualFold(s.Status, SessionStatusStarted) ||
		strings.EqualFold(s.ArchiveStatus, ArchiveStatusGenerating)
}

// State maps the session info onto a SessionState.
func (s SessionInfo) State() SessionState {
	switch {
	case s.IsLive():
		return SessionLive
	case s.Status == "":
		return SessionUnknown
	default:
		return SessionNone
	}
}

// SessionTransition is published when the derived session state changes.
type SessionTransition struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
	Info SessionInfo  `json:"info"`
	At   time.Time    `json:"at"`
}
