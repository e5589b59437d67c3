package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

func TestRecentKeepsLastMessages(t *testing.T) {
	m := New(3, time.Minute)
	for i := range 5 {
		m.Consume(model.LiveTimingMessage{Category: fmt.Sprintf("C%d", i)})
	}

	recent := m.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"C2", "C3", "C4"}, []string{recent[0].Category, recent[1].Category, recent[2].Category})

	// the returned slice is a copy
	recent[0].Category = "changed"
	assert.Equal(t, "C2", m.Recent()[0].Category)
}

func TestTickRecordsAndTrimsHistory(t *testing.T) {
	now := time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC)
	m := New(10, 3*time.Second)
	m.now = func() time.Time { return now }

	for i := 1; i <= 5; i++ {
		for range i {
			m.Consume(model.LiveTimingMessage{Category: "Heartbeat"})
		}
		now = now.Add(time.Second)
		m.Tick()
	}

	want := []RatePoint{
		{At: time.Date(2024, 5, 26, 13, 0, 3, 0, time.UTC), Count: 3},
		{At: time.Date(2024, 5, 26, 13, 0, 4, 0, time.UTC), Count: 4},
		{At: time.Date(2024, 5, 26, 13, 0, 5, 0, time.UTC), Count: 5},
	}
	if diff := cmp.Diff(want, m.PerSecond()); diff != "" {
		t.Errorf("PerSecond() mismatch (-want +got):\n%s", diff)
	}

	now = now.Add(time.Second)
	m.Tick()
	assert.Equal(t, int64(0), m.PerSecond()[2].Count)
}

func TestPerMinute(t *testing.T) {
	now := time.Date(2024, 5, 26, 13, 0, 58, 0, time.UTC)
	m := New(10, time.Hour)
	m.now = func() time.Time { return now }

	counts := []int{2, 3, 4, 5}
	for _, n := range counts {
		for range n {
			m.Consume(model.LiveTimingMessage{})
		}
		m.Tick()
		now = now.Add(time.Second)
	}

	want := []RatePoint{
		{At: time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC), Count: 5},
		{At: time.Date(2024, 5, 26, 13, 1, 0, 0, time.UTC), Count: 9},
	}
	if diff := cmp.Diff(want, m.PerMinute()); diff != "" {
		t.Errorf("PerMinute() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaults(t *testing.T) {
	m := New(0, 0)
	assert.Equal(t, 10, m.size)
	assert.Equal(t, 30*time.Minute, m.window)
	assert.Empty(t, m.PerMinute())
}
