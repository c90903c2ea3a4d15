package variable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	notified []string
}

func (l *recordingListener) OnChange(name string) {
	l.notified = append(l.notified, name)
}

func TestRegistry_ReadUnsetIsWildcard(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.ReadTime("sunset_time")
	require.False(t, ok)
	_, _, _, ok = r.ReadDate("today")
	require.False(t, ok)
}

func TestRegistry_SetAndReadTime(t *testing.T) {
	r := NewRegistry()
	r.SetTime("sunset_time", 19, 45)

	hour, minute, ok := r.ReadTime("sunset_time")
	require.True(t, ok)
	require.Equal(t, 19, hour)
	require.Equal(t, 45, minute)
}

func TestRegistry_SubscribeNotifiesOnChange(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Subscribe("sunset_time", l)

	r.SetTime("sunset_time", 20, 0)
	require.Equal(t, []string{"sunset_time"}, l.notified)

	r.SetTime("sunset_time", 20, 1)
	require.Equal(t, []string{"sunset_time", "sunset_time"}, l.notified)
}

func TestRegistry_UnsubscribeStopsNotifications(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Subscribe("today", l)
	r.Unsubscribe("today", l)

	r.SetDate("today", 25, 12, 2024)
	require.Empty(t, l.notified)
}

func TestRegistry_UnsetClearsValue(t *testing.T) {
	r := NewRegistry()
	r.SetDate("today", 25, 12, 2024)
	r.Unset("today")

	_, _, _, ok := r.ReadDate("today")
	require.False(t, ok)
}
