// File: port/port_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package port_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/port"
)

func buildTestPort(t *testing.T, d *driver.Mem, cores []api.CoreID) (*port.Port, *mbuf.Pool) {
	t.Helper()
	pool, err := mbuf.CreatePool(d, "port-pool", 256, 0, api.SocketAny)
	require.NoError(t, err)

	p, err := port.NewBuilder("uplink", "mem0").
		Cores(cores).
		RxCapacity(64).
		TxCapacity(64).
		Pools(map[api.SocketID]*mbuf.Pool{api.SocketAny: pool}).
		Logger(zap.NewNop()).
		Build(d)
	require.NoError(t, err)
	return p, pool
}

func TestBuildQueuePerCore(t *testing.T) {
	d := driver.NewMem()
	cores := []api.CoreID{1, 2}
	p, _ := buildTestPort(t, d, cores)

	assert.Len(t, p.Queues(), 2)
	for _, core := range cores {
		_, ok := p.Queue(core)
		assert.True(t, ok, "core %s", core)
	}
	_, ok := p.Queue(5)
	assert.False(t, ok)
}

func TestBuildRequiresCores(t *testing.T) {
	d := driver.NewMem()
	_, err := port.NewBuilder("uplink", "mem0").Build(d)
	assert.Error(t, err)
}

func TestReceiveBurstCap(t *testing.T) {
	d := driver.NewMem()
	p, _ := buildTestPort(t, d, []api.CoreID{1})
	require.NoError(t, p.Start())

	dev, err := d.OpenDevice("mem0")
	require.NoError(t, err)
	mem := dev.(*driver.MemDevice)

	// Inject more than one burst's worth.
	for i := 0; i < 40; i++ {
		require.True(t, mem.InjectRx(0, []byte{byte(i)}))
	}

	q, _ := p.Queue(1)
	first := q.Receive()
	assert.Len(t, first, api.BurstSize)
	second := q.Receive()
	assert.Len(t, second, 8)

	for _, b := range append(first, second...) {
		b.Release()
	}
}

func TestTransmitDrainsAll(t *testing.T) {
	d := driver.NewMem()
	p, pool := buildTestPort(t, d, []api.CoreID{1})
	require.NoError(t, p.Start())

	var pkts []*mbuf.Buffer
	for i := 0; i < 5; i++ {
		b, err := pool.Alloc()
		require.NoError(t, err)
		pkts = append(pkts, b)
	}
	q, _ := p.Queue(1)
	sent, dropped := q.Transmit(pkts)
	assert.Equal(t, 5, sent)
	assert.Equal(t, 0, dropped)

	dev, _ := d.OpenDevice("mem0")
	assert.Len(t, dev.(*driver.MemDevice).Transmitted(), 5)
	// Fast-free returned every segment.
	assert.Equal(t, 256, pool.FreeCount())
}

// Zero progress from the device tail-drops the rest of the batch instead
// of spinning.
func TestTransmitTailDropOnStall(t *testing.T) {
	d := driver.NewMem()
	p, pool := buildTestPort(t, d, []api.CoreID{1})
	require.NoError(t, p.Start())

	dev, _ := d.OpenDevice("mem0")
	dev.(*driver.MemDevice).SetTxStall(true)

	var pkts []*mbuf.Buffer
	for i := 0; i < 4; i++ {
		b, err := pool.Alloc()
		require.NoError(t, err)
		pkts = append(pkts, b)
	}
	q, _ := p.Queue(1)
	sent, dropped := q.Transmit(pkts)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 4, dropped)
	// Dropped packets went back to the pool, not leaked.
	assert.Equal(t, 256, pool.FreeCount())
}

func TestStartStopClose(t *testing.T) {
	d := driver.NewMem()
	p, _ := buildTestPort(t, d, []api.CoreID{1})

	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())
	require.NoError(t, p.Close())
}
