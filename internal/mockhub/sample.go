package mockhub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

// SampleSession builds a short synthetic message log: a subscribe snapshot
// followed by feed updates, including one compressed category, and a final
// session status change to Finalised.
func SampleSession(start time.Time, updates int) ([]string, error) {
	start = start.UTC()
	clock := start.Format(time.RFC3339Nano)

	snapshot := map[string]any{
		"R": map[string]any{
			"Heartbeat":         map[string]any{"Utc": clock},
			"ExtrapolatedClock": map[string]any{"Utc": clock, "Remaining": "01:00:00", "Extrapolating": true},
			"SessionInfo": map[string]any{
				"Meeting":       map[string]any{"Name": "Mock Grand Prix"},
				"ArchiveStatus": map[string]any{"Status": "Generating"},
				"Type":          "Race",
				"Name":          "Race",
				"StartDate":     start.Format("2006-01-02T15:04:05"),
				"EndDate":       start.Add(2 * time.Hour).Format("2006-01-02T15:04:05"),
				"SessionStatus": "Started",
			},
			"TrackStatus": map[string]any{"Status": "1", "Message": "AllClear"},
			"LapCount":    map[string]any{"CurrentLap": 1, "TotalLaps": 57},
		},
		"I": "1",
	}
	first, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	lines := []string{string(first)}

	for i := 0; i < updates; i++ {
		ts := start.Add(time.Duration(i+1) * time.Second).Format(time.RFC3339Nano)
		car, err := signalr.Deflate(fmt.Sprintf(`{"Entries":[{"Utc":%q,"Cars":{"1":{"Channels":{"0":%d,"2":%d}}}}]}`, ts, 10000+i, 250+i%50))
		if err != nil {
			return nil, err
		}
		line, err := feedFrame(
			feedItem("LapCount", map[string]any{"CurrentLap": 1 + i/10}, ts),
			feedItem("CarData.z", car, ts),
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line, "{}")
	}

	end := start.Add(time.Duration(updates+1) * time.Second).Format(time.RFC3339Nano)
	last, err := feedFrame(
		feedItem("SessionData", map[string]any{"StatusSeries": map[string]any{"5": map[string]any{"Utc": end, "SessionStatus": "Finalised"}}}, end),
		feedItem("SessionInfo", map[string]any{"SessionStatus": "Finalised", "ArchiveStatus": map[string]any{"Status": "Complete"}}, end),
	)
	if err != nil {
		return nil, err
	}
	return append(lines, last), nil
}

func feedItem(category string, payload any, ts string) signalr.FeedInvocation {
	args := make([]json.RawMessage, 3)
	args[0], _ = json.Marshal(category)
	args[1], _ = json.Marshal(payload)
	args[2], _ = json.Marshal(ts)
	return signalr.FeedInvocation{Hub: constants.HubName, Method: constants.FeedMethod, Arguments: args}
}

func feedFrame(items ...signalr.FeedInvocation) (string, error) {
	frame := struct {
		C string                   `json:"C"`
		M []signalr.FeedInvocation `json:"M"`
	}{C: "d-mock", M: items}
	data, err := json.Marshal(frame)
	if err != nil {
		return "", fmt.Errorf("encoding feed frame: %w", err)
	}
	return string(data), nil
}
