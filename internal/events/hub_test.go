package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	assert.Equal(t, 2, h.Clients())

	h.Publish("x")
	assert.Equal(t, "x", <-a)
	assert.Equal(t, "x", <-b)

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	assert.Equal(t, 1, h.Clients())
	_, open := <-a
	assert.False(t, open)
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < clientBuffer+5; i++ {
		h.Publish("e")
	}
	assert.Len(t, ch, clientBuffer)
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Publish("ignored")
}

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("run-1", TypeLinePrefix+"SUCCESS", 1, map[string]int{"line": 3})

	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "line.SUCCESS", e.Type)
	assert.Equal(t, "run-1", e.RunID)
	assert.JSONEq(t, `{"line":3}`, string(e.Data))
}

func TestFilterMatch(t *testing.T) {
	started := MakeEvent("r1", TypeRunStarted, 1, nil)
	line := MakeEvent("r1", TypeLinePrefix+"SUCCESS", 1, map[string]int{"line": 3})
	other := MakeEvent("r2", TypeLinePrefix+"FAILED", 1, nil)

	tests := []struct {
		name   string
		filter Filter
		want   []bool
	}{
		{"empty", Filter{}, []bool{true, true, true}},
		{"run", Filter{RunID: "r1"}, []bool{true, true, false}},
		{"type prefix", Filter{TypePrefix: TypeLinePrefix}, []bool{false, true, true}},
		{"run and type", Filter{RunID: "r1", TypePrefix: TypeLinePrefix}, []bool{false, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.filter.Match(started), tt.filter.Match(line), tt.filter.Match(other)}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, Filter{}.Match("not json"))
	assert.False(t, Filter{RunID: "r1"}.Match("not json"))
}
