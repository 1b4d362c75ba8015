package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/dbus"
)

type sentLog struct {
	sent   []*dbus.Notification
	closed []uint32
	nextID uint32
	err    error
}

func (l *sentLog) dismiss(id uint32) error {
	if l.err != nil {
		return l.err
	}
	l.closed = append(l.closed, id)
	return nil
}

func (l *sentLog) handle(n *dbus.Notification) (uint32, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.sent = append(l.sent, n)
	l.nextID++
	return l.nextID, nil
}

func newTestNotifier(log *sentLog) (*Notifier, *time.Time) {
	now := time.UnixMilli(1_700_000_000_000)
	n := NewNotifier(nil)
	n.now = func() time.Time { return now }
	n.SetNotifyHandler(log.handle)
	return n, &now
}

func TestNotifier_NoHandler(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.HasHandler())
	assert.False(t, n.Notify("k", "s", "b", NotificationLevelInfo))
}

func TestNotifier_Disabled(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)
	n.SetEnabled(false)

	assert.False(t, n.Enabled())
	assert.False(t, n.NotifyJoined([]string{"a"}))
	assert.Empty(t, log.sent)
}

func TestNotifier_CloseAll(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)
	n.SetCloseHandler(log.dismiss)

	require.True(t, n.NotifyJoined([]string{"a"}))
	require.True(t, n.NotifyLeft([]string{"a"}))
	require.True(t, n.NotifyConfigReloaded())

	n.CloseAll()
	// Membership notices share one bubble.
	assert.ElementsMatch(t, []uint32{2, 3}, log.closed)

	// Closed notices are not replaced or closed again.
	n.CloseAll()
	assert.Len(t, log.closed, 2)
	require.True(t, n.NotifyJoined([]string{"b"}))
	assert.Zero(t, log.sent[len(log.sent)-1].ReplacesID)
}

func TestNotifier_CloseAllWithoutHandler(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)
	require.True(t, n.NotifyJoined([]string{"a"}))

	assert.NotPanics(t, n.CloseAll)
	require.True(t, n.NotifyJoined([]string{"b"}))
	assert.Zero(t, log.sent[1].ReplacesID)
}

func TestNotifier_RateLimit(t *testing.T) {
	log := &sentLog{}
	n, now := newTestNotifier(log)
	n.SetMinInterval(time.Second)

	assert.True(t, n.NotifyConfigReloaded())
	assert.False(t, n.NotifyConfigReloaded())

	// Different keys are limited independently
	assert.True(t, n.NotifyConfigError(errors.New("bad toml")))

	*now = now.Add(time.Second)
	assert.True(t, n.NotifyConfigReloaded())
	assert.Len(t, log.sent, 3)
}

func TestNotifier_MembershipReplacesBubble(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)

	require.True(t, n.NotifyJoined([]string{"a"}))
	require.True(t, n.NotifyJoined([]string{"b", "c"}))
	require.True(t, n.NotifyLeft([]string{"a"}))

	require.Len(t, log.sent, 3)
	assert.Equal(t, "Window joined", log.sent[0].Summary)
	assert.Equal(t, uint32(0), log.sent[0].ReplacesID)

	assert.Equal(t, "Windows joined", log.sent[1].Summary)
	assert.Equal(t, "b\nc", log.sent[1].Body)
	assert.Equal(t, uint32(1), log.sent[1].ReplacesID)

	assert.Equal(t, "Window left", log.sent[2].Summary)
	assert.Equal(t, uint32(2), log.sent[2].ReplacesID)
}

func TestNotifier_EmptyMembershipIsSkipped(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)

	assert.False(t, n.NotifyJoined(nil))
	assert.False(t, n.NotifyLeft([]string{}))
	assert.Empty(t, log.sent)
}

func TestNotifier_Hints(t *testing.T) {
	log := &sentLog{}
	n, _ := newTestNotifier(log)

	require.True(t, n.Notify("k", "Broken", "body", NotificationLevelError))
	require.Len(t, log.sent, 1)

	sent := log.sent[0]
	assert.Equal(t, "winsync", sent.AppName)
	assert.Equal(t, "dialog-error", sent.AppIcon)
	assert.Equal(t, dbus.UrgencyCritical, sent.Urgency())
	assert.Equal(t, "presence", sent.Category())
	assert.True(t, sent.Transient())
}

func TestNotifier_HandlerError(t *testing.T) {
	log := &sentLog{err: errors.New("no notification server")}
	n, _ := newTestNotifier(log)

	assert.False(t, n.NotifyJoined([]string{"a"}))
}
