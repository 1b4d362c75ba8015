package dbus

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	method string
	args   []any
}

type fakeObject struct {
	calls []fakeCall
	reply uint32
	err   error
}

func (o *fakeObject) Call(method string, _ dbus.Flags, args ...any) *dbus.Call {
	o.calls = append(o.calls, fakeCall{method: method, args: args})
	return &dbus.Call{Body: []any{o.reply}, Err: o.err}
}

func TestClient_Notify(t *testing.T) {
	obj := &fakeObject{reply: 42}
	c := newClient(obj, nil)

	n := &Notification{AppName: "winsync", Summary: "Window joined", Body: "01HAAA", ExpireTimeout: 3000}
	n.SetHint("urgency", UrgencyLow)

	id, err := c.Notify(n)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)

	require.Len(t, obj.calls, 1)
	call := obj.calls[0]
	assert.Equal(t, "org.freedesktop.Notifications.Notify", call.method)
	require.Len(t, call.args, 8)
	assert.Equal(t, "winsync", call.args[0])
	assert.Equal(t, uint32(0), call.args[1])
	assert.Equal(t, "Window joined", call.args[3])
	assert.Equal(t, []string{}, call.args[5])
	assert.Equal(t, int32(3000), call.args[7])
}

func TestClient_NotifyError(t *testing.T) {
	c := newClient(&fakeObject{err: errors.New("no server")}, nil)

	_, err := c.Notify(&Notification{Summary: "x"})
	assert.Error(t, err)
}

func TestClient_CloseNotification(t *testing.T) {
	obj := &fakeObject{}
	c := newClient(obj, nil)

	require.NoError(t, c.CloseNotification(7))
	require.Len(t, obj.calls, 1)
	assert.Equal(t, "org.freedesktop.Notifications.CloseNotification", obj.calls[0].method)
	assert.Equal(t, []any{uint32(7)}, obj.calls[0].args)
}

func TestClient_Closed(t *testing.T) {
	c := newClient(&fakeObject{}, nil)
	require.NoError(t, c.Close())

	_, err := c.Notify(&Notification{Summary: "x"})
	assert.Error(t, err)
	assert.Error(t, c.CloseNotification(1))
}

func TestNotification_Hints(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, UrgencyNormal, n.Urgency())
	assert.Empty(t, n.Category())
	assert.False(t, n.Transient())

	n.SetHint("urgency", UrgencyCritical)
	n.SetHint("category", "presence")
	n.SetHint("transient", true)

	assert.Equal(t, UrgencyCritical, n.Urgency())
	assert.Equal(t, "presence", n.Category())
	assert.True(t, n.Transient())
}
