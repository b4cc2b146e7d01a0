// File: registry/control_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end control-channel exercise over a real request/reply socket,
// with a pump goroutine standing in for the master executor.

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/registry"
	"github.com/momentics/hioload-fwd/ring"
)

// pump steps the control task and the dispatcher the way the master
// executor does.
func pump(ctx context.Context, ctrl *registry.Control, reg *registry.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ctrl.Step()
		if ev, ok := reg.TakeEvent(); ok {
			err := reg.Dispatch(ev, api.SocketAny)
			if ev.Type == registry.PodStarting {
				ctrl.CompleteStarting(err)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func TestControlRegisterReadyStop(t *testing.T) {
	const endpoint = "tcp://127.0.0.1:15701"

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	d := driver.NewMem()
	reg := registry.New(d, ring.NewRingMap(), zap.NewNop())
	ctrl, err := registry.NewControl(ctx, endpoint, reg, zap.NewNop())
	require.NoError(t, err)
	defer ctrl.Close()

	go pump(ctx, ctrl, reg)

	client := registry.NewClient(ctx, endpoint, d)
	defer client.Close()

	// Registration allocates both rings before the "1" reply arrives.
	require.NoError(t, client.Register())
	_, ok := ring.Lookup(d, client.ID(), api.RxToClient)
	assert.True(t, ok)
	st, ok := reg.Status(client.ID())
	require.True(t, ok)
	assert.Equal(t, api.Starting, st)

	require.NoError(t, client.Ready())
	waitFor(t, func() bool { return reg.IsReady(client.ID()) })

	require.NoError(t, client.Stop())
	waitFor(t, func() bool {
		_, ok := reg.Status(client.ID())
		return !ok
	})
	_, ok = ring.Lookup(d, client.ID(), api.RxToClient)
	assert.False(t, ok)
}

func TestControlMalformedFrameDiscarded(t *testing.T) {
	const endpoint = "tcp://127.0.0.1:15702"

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	d := driver.NewMem()
	reg := registry.New(d, ring.NewRingMap(), zap.NewNop())
	ctrl, err := registry.NewControl(ctx, endpoint, reg, zap.NewNop())
	require.NoError(t, err)
	defer ctrl.Close()

	go pump(ctx, ctrl, reg)

	// A raw requester with a frame the engine cannot parse.
	client := registry.NewClient(ctx, endpoint, d)
	defer client.Close()
	reply, err := client.SendRaw([]byte(`{"id":"x","msg":0}`))
	require.NoError(t, err)
	assert.Equal(t, registry.ReplyError, reply)

	// Nothing was registered.
	assert.Equal(t, 0, reg.Rings().Len())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}
