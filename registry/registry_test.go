// File: registry/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/registry"
	"github.com/momentics/hioload-fwd/ring"
)

func newTestRegistry(t *testing.T) (*registry.Registry, *driver.Mem) {
	t.Helper()
	d := driver.NewMem()
	return registry.New(d, ring.NewRingMap(), zap.NewNop()), d
}

func TestParseMsg(t *testing.T) {
	msg, err := registry.ParseMsg([]byte(`{"id":7,"msg":0}`))
	require.NoError(t, err)
	assert.Equal(t, api.ClientID(7), msg.ID)
	assert.Equal(t, registry.PodStarting, msg.Type)

	// Wrong field type.
	_, err = registry.ParseMsg([]byte(`{"id":"x","msg":0}`))
	assert.ErrorIs(t, err, api.ErrUnknownMsgFormat)

	// Missing fields.
	_, err = registry.ParseMsg([]byte(`{"id":7}`))
	assert.ErrorIs(t, err, api.ErrUnknownMsgFormat)
	_, err = registry.ParseMsg([]byte(`{"msg":1}`))
	assert.ErrorIs(t, err, api.ErrUnknownMsgFormat)

	// Not JSON at all.
	_, err = registry.ParseMsg([]byte(`starting`))
	assert.ErrorIs(t, err, api.ErrUnknownMsgFormat)
}

func TestMsgEncodeParseRoundTrip(t *testing.T) {
	in := registry.Msg{ID: 42, Type: registry.PodReady}
	out, err := registry.ParseMsg(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// Register -> Ready -> Stop walks the whole client state machine and the
// ring lifecycle with it.
func TestLifecycleStartReadyStop(t *testing.T) {
	reg, d := newTestRegistry(t)

	require.NoError(t, reg.Dispatch(registry.Event{ID: 7, Type: registry.PodStarting}, api.SocketAny))

	st, ok := reg.Status(7)
	require.True(t, ok)
	assert.Equal(t, api.Starting, st)
	assert.False(t, reg.IsReady(7))

	rx, ok := ring.Lookup(d, 7, api.RxToClient)
	require.True(t, ok)
	assert.Equal(t, api.ClientRingCapacity, rx.Cap())
	_, ok = ring.Lookup(d, 7, api.TxFromClient)
	require.True(t, ok)

	require.NoError(t, reg.Dispatch(registry.Event{ID: 7, Type: registry.PodReady}, api.SocketAny))
	assert.True(t, reg.IsReady(7))

	require.NoError(t, reg.Dispatch(registry.Event{ID: 7, Type: registry.PodStopping}, api.SocketAny))
	_, ok = reg.Status(7)
	assert.False(t, ok)
	_, ok = ring.Lookup(d, 7, api.RxToClient)
	assert.False(t, ok)
	_, ok = ring.Lookup(d, 7, api.TxFromClient)
	assert.False(t, ok)
}

// Ready without a prior registration is rejected and changes nothing.
func TestReadyUnknownClient(t *testing.T) {
	reg, _ := newTestRegistry(t)

	err := reg.Dispatch(registry.Event{ID: 99, Type: registry.PodReady}, api.SocketAny)
	assert.ErrorIs(t, err, api.ErrUnknownClient)
	_, ok := reg.Status(99)
	assert.False(t, ok)
}

func TestStoppingUnknownClient(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.Dispatch(registry.Event{ID: 99, Type: registry.PodStopping}, api.SocketAny)
	assert.ErrorIs(t, err, api.ErrUnknownClient)
}

func TestDispatchRejectsUnknownCode(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.Dispatch(registry.Event{ID: 1, Type: registry.MsgType(9)}, api.SocketAny)
	assert.ErrorIs(t, err, api.ErrUnknownClientStatus)
}

// A second registration for the same id fails ring allocation and must not
// disturb the existing channel.
func TestDuplicateRegistration(t *testing.T) {
	reg, d := newTestRegistry(t)

	require.NoError(t, reg.Dispatch(registry.Event{ID: 3, Type: registry.PodStarting}, api.SocketAny))
	err := reg.Dispatch(registry.Event{ID: 3, Type: registry.PodStarting}, api.SocketAny)
	assert.Error(t, err)

	_, ok := ring.Lookup(d, 3, api.RxToClient)
	assert.True(t, ok)
	st, _ := reg.Status(3)
	assert.Equal(t, api.Starting, st)
}

func TestPendingEventSlot(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, ok := reg.TakeEvent()
	assert.False(t, ok)

	reg.PostEvent(registry.Event{ID: 1, Type: registry.PodStarting})
	// The slot holds one event; a newer one replaces it.
	reg.PostEvent(registry.Event{ID: 2, Type: registry.PodReady})

	ev, ok := reg.TakeEvent()
	require.True(t, ok)
	assert.Equal(t, api.ClientID(2), ev.ID)

	_, ok = reg.TakeEvent()
	assert.False(t, ok)
}

func TestNextClientIDMonotonic(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := reg.NextClientID()
	b := reg.NextClientID()
	assert.Equal(t, a+1, b)
}

func TestTeardownRemovesEverything(t *testing.T) {
	reg, d := newTestRegistry(t)
	require.NoError(t, reg.Dispatch(registry.Event{ID: 1, Type: registry.PodStarting}, api.SocketAny))
	require.NoError(t, reg.Dispatch(registry.Event{ID: 2, Type: registry.PodStarting}, api.SocketAny))

	reg.Teardown()
	assert.Equal(t, 0, reg.Rings().Len())
	_, ok := ring.Lookup(d, 1, api.RxToClient)
	assert.False(t, ok)
}
