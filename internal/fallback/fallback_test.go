package fallback

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpulse/pulsemap/internal/classify"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

type captureSink struct {
	html string
}

func (s *captureSink) PresentList(html string) error {
	s.html = html
	return nil
}

func fptr(f float64) *float64 { return &f }

func sampleSnapshot() core.Snapshot {
	return core.Snapshot{Events: []core.Event{
		{
			ID:         "e1",
			Name:       "Expo Setup",
			ClientName: "Acme",
			Venue:      "somewhere with no coordinates",
			Attendance: []core.AttendanceRecord{
				{
					PersonID:       "p1",
					Name:           "Asha",
					Role:           "Lead",
					Status:         core.StatusCheckedIn,
					DistanceMeters: fptr(41.6),
				},
				{
					PersonID: "p2",
					Name:     "Ravi",
					Status:   core.StatusNotCheckedIn,
					// No location, no distance: still fully visible here.
				},
			},
		},
	}}
}

func TestGroups(t *testing.T) {
	groups := Groups(sampleSnapshot())
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "Expo Setup", g.Title)
	assert.Equal(t, "Acme", g.Client)
	assert.Equal(t, 1, g.CheckedIn)
	assert.Equal(t, 2, g.Total)
	require.Len(t, g.Chips, 2)

	assert.Equal(t, classify.ClassOnSite, g.Chips[0].Class)
	assert.Equal(t, "42m", g.Chips[0].Distance)
	assert.Equal(t, classify.ClassAlert, g.Chips[1].Class)
	assert.Empty(t, g.Chips[1].Distance)
}

func TestPresent_RendersEveryEntity(t *testing.T) {
	sink := &captureSink{}
	p := New(sink, nil, slog.Default())

	require.NoError(t, p.Present(sampleSnapshot()))

	// Spatially unresolvable entities must not be dropped.
	assert.Contains(t, sink.html, "Asha")
	assert.Contains(t, sink.html, "Ravi")
	assert.Contains(t, sink.html, "Not checked in")
	assert.Contains(t, sink.html, `data-event-id="e1"`)
	assert.Contains(t, sink.html, `data-person-id="p2"`)
}

func TestPresent_EmptySnapshot(t *testing.T) {
	sink := &captureSink{}
	p := New(sink, nil, slog.Default())

	require.NoError(t, p.Present(core.Snapshot{}))
	assert.Contains(t, sink.html, "No events scheduled")
}

func TestFocus_SameContractAsRegistry(t *testing.T) {
	var gotRec core.AttendanceRecord
	var gotEv core.Event
	p := New(&captureSink{}, func(rec core.AttendanceRecord, ev core.Event) {
		gotRec, gotEv = rec, ev
	}, slog.Default())

	require.NoError(t, p.Present(sampleSnapshot()))

	p.Focus("e1", "p2")
	assert.Equal(t, "p2", gotRec.PersonID)
	assert.Equal(t, "e1", gotEv.ID)

	// Unknown ids are ignored.
	gotRec = core.AttendanceRecord{}
	p.Focus("e9", "p9")
	assert.Empty(t, gotRec.PersonID)
}
