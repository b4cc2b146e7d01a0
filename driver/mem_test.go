// File: driver/mem_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
)

func TestPoolAllocFree(t *testing.T) {
	d := driver.NewMem()
	p, err := d.CreatePool("p0", 4, 0, api.SocketAny)
	require.NoError(t, err)

	s, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 3, p.FreeCount())
	assert.Equal(t, driver.DefaultHeadroom, int(s.DataOff))
	assert.Equal(t, 0, int(s.DataLen))

	p.Free(s)
	assert.Equal(t, 4, p.FreeCount())
}

func TestPoolExhaustedAndBulk(t *testing.T) {
	d := driver.NewMem()
	p, err := d.CreatePool("p0", 2, 0, api.SocketAny)
	require.NoError(t, err)

	segs, err := p.AllocBulk(2)
	require.NoError(t, err)
	_, err = p.Alloc()
	assert.ErrorIs(t, err, api.ErrPoolExhausted)

	p.FreeBulk(segs)
	assert.Equal(t, 2, p.FreeCount())
}

func TestDuplicatePoolName(t *testing.T) {
	d := driver.NewMem()
	_, err := d.CreatePool("dup", 2, 0, api.SocketAny)
	require.NoError(t, err)
	_, err = d.CreatePool("dup", 2, 0, api.SocketAny)
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
}

func TestRingExactCapacity(t *testing.T) {
	d := driver.NewMem()
	r, err := d.CreateRing("r0", 32, api.SocketAny)
	require.NoError(t, err)
	assert.Equal(t, 32, r.Cap())

	segs := make([]*driver.Seg, 33)
	for i := range segs {
		segs[i] = driver.NewSeg(make([]byte, 64))
	}
	for i := 0; i < 32; i++ {
		require.True(t, r.Enqueue(segs[i]), "slot %d", i)
	}
	assert.False(t, r.Enqueue(segs[32]))
	assert.Equal(t, 32, r.Len())

	got, ok := r.Dequeue()
	require.True(t, ok)
	assert.Same(t, segs[0], got)
}

func TestRingLookupAndDestroy(t *testing.T) {
	d := driver.NewMem()
	_, err := d.CreateRing("RX-7", 32, api.SocketAny)
	require.NoError(t, err)

	r, ok := d.LookupRing("RX-7")
	require.True(t, ok)
	assert.Equal(t, "RX-7", r.Name())

	_, ok = d.LookupRing("RX-8")
	assert.False(t, ok)

	require.NoError(t, d.DestroyRing("RX-7"))
	_, ok = d.LookupRing("RX-7")
	assert.False(t, ok)
	assert.ErrorIs(t, d.DestroyRing("RX-7"), api.ErrNotFound)
}

// Destroying a ring returns queued segments to their pools.
func TestRingDestroyFreesQueued(t *testing.T) {
	d := driver.NewMem()
	p, err := d.CreatePool("p0", 4, 0, api.SocketAny)
	require.NoError(t, err)
	r, err := d.CreateRing("q", 8, api.SocketAny)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s, err := p.Alloc()
		require.NoError(t, err)
		require.True(t, r.Enqueue(s))
	}
	require.Equal(t, 1, p.FreeCount())

	require.NoError(t, d.DestroyRing("q"))
	assert.Equal(t, 4, p.FreeCount())
}

func TestDeviceInjectReceiveTransmit(t *testing.T) {
	d := driver.NewMem()
	p, err := d.CreatePool("p0", 8, 0, api.SocketAny)
	require.NoError(t, err)

	dev, err := d.OpenDevice("lo0")
	require.NoError(t, err)
	require.NoError(t, dev.Configure(driver.DeviceConfig{RxQueues: 1, TxQueues: 1}))
	require.NoError(t, dev.SetupRxQueue(0, 64, api.SocketAny, p))
	require.NoError(t, dev.SetupTxQueue(0, 64, api.SocketAny))
	require.NoError(t, dev.Start())

	mem := dev.(*driver.MemDevice)
	require.True(t, mem.InjectRx(0, []byte{1, 2, 3}))

	segs := make([]*driver.Seg, api.BurstSize)
	n := dev.RxBurst(0, segs)
	require.Equal(t, 1, n)
	assert.Equal(t, []byte{1, 2, 3}, segs[0].Data())

	sent := dev.TxBurst(0, segs[:1])
	assert.Equal(t, 1, sent)
	assert.Equal(t, [][]byte{{1, 2, 3}}, mem.Transmitted())
	// Fast-free returned the segment to its pool.
	assert.Equal(t, 8, p.FreeCount())
}

func TestDeviceTxStall(t *testing.T) {
	d := driver.NewMem()
	dev, err := d.OpenDevice("lo0")
	require.NoError(t, err)
	require.NoError(t, dev.Configure(driver.DeviceConfig{RxQueues: 1, TxQueues: 1}))
	require.NoError(t, dev.SetupTxQueue(0, 64, api.SocketAny))
	require.NoError(t, dev.Start())

	mem := dev.(*driver.MemDevice)
	mem.SetTxStall(true)
	assert.Equal(t, 0, dev.TxBurst(0, []*driver.Seg{driver.NewSeg(make([]byte, 8))}))
}
