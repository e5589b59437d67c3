package supervisor

import (
	"encoding/json"
	"fmt"

	"github.com/Guliveer/livetiming-connector/internal/jsonutil"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// mergeSessionInfo applies a SessionInfo payload on top of cur. Fields absent
// from the payload keep their previous value.
func mergeSessionInfo(cur model.SessionInfo, payload string) (model.SessionInfo, error) {
	raw := json.RawMessage(payload)
	if !json.Valid(raw) || !jsonutil.IsObject(raw) {
		return cur, fmt.Errorf("session info payload is not a JSON object")
	}

	next := cur
	next.MeetingName = jsonutil.Text(jsonutil.Path(raw, "Meeting", "Name"), next.MeetingName)
	next.Status = jsonutil.Text(jsonutil.Path(raw, "SessionStatus"), next.Status)
	next.ArchiveStatus = jsonutil.Text(jsonutil.Path(raw, "ArchiveStatus", "Status"), next.ArchiveStatus)
	next.Type = jsonutil.Text(jsonutil.Path(raw, "Type"), next.Type)
	next.Name = jsonutil.Text(jsonutil.Path(raw, "Name"), next.Name)
	next.StartDate = jsonutil.Text(jsonutil.Path(raw, "StartDate"), next.StartDate)
	next.EndDate = jsonutil.Text(jsonutil.Path(raw, "EndDate"), next.EndDate)
	return next, nil
}

// mergeSessionData applies the StatusSeries of a SessionData payload. The
// series arrives as an object keyed by index or as an array; the last entry
// carrying a textual SessionStatus wins.
func mergeSessionData(cur model.SessionInfo, payload string) (model.SessionInfo, error) {
	raw := json.RawMessage(payload)
	if !json.Valid(raw) || !jsonutil.IsObject(raw) {
		return cur, fmt.Errorf("session data payload is not a JSON object")
	}

	series := jsonutil.Path(raw, "StatusSeries")
	var entries []json.RawMessage
	if fields, ok := jsonutil.Fields(series); ok {
		for _, f := range fields {
			entries = append(entries, f.Value)
		}
	} else if items, ok := jsonutil.Elements(series); ok {
		entries = items
	}

	next := cur
	for _, entry := range entries {
		if status := jsonutil.Path(entry, "SessionStatus"); jsonutil.IsTextual(status) {
			next.Status = jsonutil.Text(status, next.Status)
		}
	}
	return next, nil
}
