package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

func TestCapability_ConstructErr(t *testing.T) {
	cap := New()
	cap.ConstructErr = errors.New("sdk unavailable")

	_, err := cap.NewMap(mapbackend.MapOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, cap.Constructed())
}

func TestMarkerLifecycle(t *testing.T) {
	cap := New()
	m, err := cap.NewMap(mapbackend.MapOptions{})
	require.NoError(t, err)
	mem := cap.LastMap()

	mk := m.AddMarker(mapbackend.MarkerElement{Kind: mapbackend.MarkerVenue})
	mk.SetLngLat(core.Coordinate{Lng: 78.4772, Lat: 17.4065})
	popup := m.AddPopup(mapbackend.PopupOptions{Offset: 25})
	popup.SetHTML("<b>Venue</b>")
	mk.SetPopup(popup)
	mk.AddTo()

	live := mem.LiveMarkers()
	require.Len(t, live, 1)
	assert.Equal(t, core.Coordinate{Lng: 78.4772, Lat: 17.4065}, live[0].Coordinate())
	assert.Equal(t, "<b>Venue</b>", live[0].PopupHTML())

	xy, ok := live[0].Position().XY()
	require.True(t, ok)
	assert.Equal(t, 78.4772, xy.X)

	require.NoError(t, mk.Remove())
	assert.ErrorIs(t, mk.Remove(), mapbackend.ErrAlreadyRemoved)
	assert.Empty(t, mem.LiveMarkers())
}

func TestEmitNotifications(t *testing.T) {
	cap := New()
	m, err := cap.NewMap(mapbackend.MapOptions{})
	require.NoError(t, err)

	var got []mapbackend.Notification
	m.On(mapbackend.NotifError, func(n mapbackend.Notification) {
		got = append(got, n)
	})

	cap.LastMap().Emit(mapbackend.NotifError, "401 Unauthorized")
	cap.LastMap().Emit(mapbackend.NotifLoad, "") // no subscriber, must not panic

	require.Len(t, got, 1)
	assert.Equal(t, "401 Unauthorized", got[0].Message)
}

func TestCameraLog(t *testing.T) {
	cap := New()
	m, err := cap.NewMap(mapbackend.MapOptions{})
	require.NoError(t, err)

	m.FitBounds(mapbackend.Bounds{MinLng: 1, MinLat: 2, MaxLng: 3, MaxLat: 4}, mapbackend.FitOptions{Padding: 48})
	m.ZoomIn()
	m.ZoomOut()

	cmds := cap.LastMap().Camera()
	require.Len(t, cmds, 3)
	assert.Equal(t, "fit", cmds[0].Op)
	assert.Equal(t, 48, cmds[0].Fit.Padding)
	assert.Equal(t, "zoom_in", cmds[1].Op)
	assert.Equal(t, "zoom_out", cmds[2].Op)
}
