// File: ring/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/ring"
)

func newTestPool(t *testing.T, d driver.Driver, name string, capacity int) driver.Pool {
	t.Helper()
	p, err := d.CreatePool(name, capacity, 0, api.SocketAny)
	require.NoError(t, err)
	return p
}

func allocBuf(t *testing.T, p driver.Pool) *mbuf.Buffer {
	t.Helper()
	s, err := p.Alloc()
	require.NoError(t, err)
	return mbuf.FromSeg(s)
}

func TestRingNames(t *testing.T) {
	assert.Equal(t, "RX-7", ring.Name(7, api.RxToClient))
	assert.Equal(t, "TX-7", ring.Name(7, api.TxFromClient))
}

func TestCreateLookup(t *testing.T) {
	d := driver.NewMem()
	r, err := ring.Create(d, 7, api.RxToClient, api.ClientRingCapacity, api.SocketAny)
	require.NoError(t, err)
	assert.Equal(t, "RX-7", r.Name())
	assert.Equal(t, 32, r.Cap())

	got, ok := ring.Lookup(d, 7, api.RxToClient)
	require.True(t, ok)
	assert.Equal(t, r.Name(), got.Name())

	_, ok = ring.Lookup(d, 8, api.RxToClient)
	assert.False(t, ok)
}

// Enqueue transfers ownership into the ring; a full ring leaves ownership
// with the caller.
func TestEnqueueOwnership(t *testing.T) {
	d := driver.NewMem()
	pool := newTestPool(t, d, "p", 8)
	r, err := ring.Create(d, 1, api.RxToClient, 2, api.SocketAny)
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(allocBuf(t, pool)))
	require.NoError(t, r.Enqueue(allocBuf(t, pool)))

	extra := allocBuf(t, pool)
	err = r.Enqueue(extra)
	assert.ErrorIs(t, err, api.ErrRingFull)
	extra.Release()
	assert.Equal(t, 6, pool.FreeCount())

	b, ok := r.Dequeue()
	require.True(t, ok)
	b.Release()
	assert.Equal(t, 7, pool.FreeCount())
}

func TestChannelSendReceive(t *testing.T) {
	d := driver.NewMem()
	pool := newTestPool(t, d, "p", 8)

	ch, err := ring.OpenChannel(d, 7, api.ClientRingCapacity, api.SocketAny)
	require.NoError(t, err)

	// Engine -> client.
	require.NoError(t, ch.Send(allocBuf(t, pool)))
	b, ok := ch.ToClient().Dequeue()
	require.True(t, ok)
	b.Release()

	// Client -> engine.
	require.NoError(t, ch.FromClient().Enqueue(allocBuf(t, pool)))
	b, ok = ch.Receive()
	require.True(t, ok)
	b.Release()

	_, ok = ch.Receive()
	assert.False(t, ok)

	require.NoError(t, ch.Close())
	_, found := ring.Lookup(d, 7, api.RxToClient)
	assert.False(t, found)
	_, found = ring.Lookup(d, 7, api.TxFromClient)
	assert.False(t, found)
}

func TestRingMap(t *testing.T) {
	d := driver.NewMem()
	pool := newTestPool(t, d, "p", 64)
	rm := ring.NewRingMap()

	b := allocBuf(t, pool)
	err := rm.Send(9, b)
	assert.ErrorIs(t, err, api.ErrUnknownClient)
	b.Release()

	_, err = rm.Receive(9)
	assert.ErrorIs(t, err, api.ErrUnknownClient)

	ch, err := ring.OpenChannel(d, 9, api.ClientRingCapacity, api.SocketAny)
	require.NoError(t, err)
	rm.Insert(9, ch)
	assert.Equal(t, 1, rm.Len())

	require.NoError(t, rm.Send(9, allocBuf(t, pool)))

	got, err := rm.Receive(9)
	require.NoError(t, err)
	assert.Nil(t, got) // client has produced nothing

	require.NoError(t, rm.Remove(9))
	assert.ErrorIs(t, rm.Remove(9), api.ErrUnknownClient)
	assert.Equal(t, 0, rm.Len())
}

// A saturated client ring rejects the 33rd packet.
func TestRingMapFullTailDrop(t *testing.T) {
	d := driver.NewMem()
	pool := newTestPool(t, d, "p", 64)
	rm := ring.NewRingMap()

	ch, err := ring.OpenChannel(d, 7, api.ClientRingCapacity, api.SocketAny)
	require.NoError(t, err)
	rm.Insert(7, ch)

	for i := 0; i < 32; i++ {
		require.NoError(t, rm.Send(7, allocBuf(t, pool)), "packet %d", i)
	}
	b := allocBuf(t, pool)
	assert.ErrorIs(t, rm.Send(7, b), api.ErrRingFull)
	b.Release()
}
