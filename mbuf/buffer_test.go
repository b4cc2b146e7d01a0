// File: mbuf/buffer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mbuf_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
)

// bindTestPool pins the test to its OS thread, as worker cores do, so the
// per-thread pool binding holds for the test body.
func bindTestPool(t *testing.T, capacity int) *mbuf.Pool {
	t.Helper()
	runtime.LockOSThread()
	d := driver.NewMem()
	pool, err := mbuf.CreatePool(d, "test-pool", capacity, 0, api.SocketAny)
	require.NoError(t, err)
	mbuf.Bind(pool)
	t.Cleanup(func() {
		mbuf.Unbind()
		runtime.UnlockOSThread()
	})
	return pool
}

func TestNewFromBoundPool(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.New()
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, 0, b.DataLen())
	assert.Equal(t, 0, b.PktLen())
	assert.Equal(t, mbuf.Owned, b.Tag())
}

func TestNewWithoutBoundPool(t *testing.T) {
	_, err := mbuf.New()
	assert.ErrorIs(t, err, api.ErrPoolNotBound)
}

func TestFromBytesRoundTrip(t *testing.T) {
	bindTestPool(t, 8)

	payload := []byte("forward me")
	b, err := mbuf.FromBytes(payload)
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, len(payload), b.DataLen())
	assert.Equal(t, payload, b.Bytes())
}

// The data window must stay inside the slab after every mutating call, or
// the call fails and the buffer is unchanged.
func TestDataWindowInvariant(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.FromBytes(make([]byte, 64))
	require.NoError(t, err)
	defer b.Release()

	require.Error(t, b.Extend(0, b.Tailroom()))
	assert.Equal(t, 64, b.DataLen())

	require.Error(t, b.Extend(65, 4))
	assert.Equal(t, 64, b.DataLen())

	require.Error(t, b.Shrink(60, 8))
	assert.Equal(t, 64, b.DataLen())

	require.Error(t, b.Extend(0, 0))
	require.Error(t, b.Shrink(0, 0))
}

func TestExtendShrinkRoundTrip(t *testing.T) {
	bindTestPool(t, 8)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	b, err := mbuf.FromBytes(payload)
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Extend(4, 16))
	assert.Equal(t, 24, b.DataLen())
	// Bytes outside the inserted window are preserved.
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes()[:4])
	assert.Equal(t, []byte{5, 6, 7, 8}, b.Bytes()[20:24])

	require.NoError(t, b.Shrink(4, 16))
	assert.Equal(t, 8, b.DataLen())
	assert.Equal(t, payload, b.Bytes())
}

func TestResizeDispatchesOnSign(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.FromBytes(make([]byte, 32))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Resize(0, 8))
	assert.Equal(t, 40, b.DataLen())
	require.NoError(t, b.Resize(0, -8))
	assert.Equal(t, 32, b.DataLen())
}

func TestTruncate(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.FromBytes(make([]byte, 32))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Truncate(10))
	assert.Equal(t, 10, b.DataLen())
	assert.Equal(t, 10, b.PktLen())

	assert.Error(t, b.Truncate(10))
	assert.Error(t, b.Truncate(30))
}

type testHeader struct {
	A [2]byte
	B [4]byte
}

func TestTypedReadWrite(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.New()
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.Extend(0, 32))

	in := testHeader{A: [2]byte{0xaa, 0xbb}, B: [4]byte{1, 2, 3, 4}}
	_, err = mbuf.Write(b, 4, &in)
	require.NoError(t, err)

	out, err := mbuf.Read[testHeader](b, 4)
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	_, err = mbuf.Read[testHeader](b, 40)
	assert.ErrorIs(t, err, api.ErrBadOffset)

	_, err = mbuf.Read[testHeader](b, 28)
	assert.ErrorIs(t, err, api.ErrOutOfBuffer)

	_, err = mbuf.Write(b, 30, &in)
	assert.ErrorIs(t, err, api.ErrOutOfBuffer)
}

func TestSliceReadWrite(t *testing.T) {
	bindTestPool(t, 8)

	b, err := mbuf.New()
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.Extend(0, 16))

	in := []byte{9, 8, 7, 6}
	_, err = mbuf.WriteSlice(b, 2, in)
	require.NoError(t, err)

	out, err := mbuf.ReadSlice[byte](b, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = mbuf.ReadSlice[byte](b, 2, 20)
	assert.ErrorIs(t, err, api.ErrOutOfBuffer)
}

func TestReleaseReturnsToPool(t *testing.T) {
	pool := bindTestPool(t, 4)

	b, err := mbuf.New()
	require.NoError(t, err)
	assert.Equal(t, 3, pool.FreeCount())

	b.Release()
	assert.Equal(t, 4, pool.FreeCount())

	// Double release stays safe.
	b.Release()
	assert.Equal(t, 4, pool.FreeCount())
}

func TestBorrowedNeverFreed(t *testing.T) {
	pool := bindTestPool(t, 4)

	b, err := mbuf.New()
	require.NoError(t, err)
	seg := b.IntoSeg()

	borrowed := mbuf.BorrowSeg(seg)
	assert.Equal(t, mbuf.Borrowed, borrowed.Tag())
	borrowed.Release()
	assert.Equal(t, 3, pool.FreeCount())

	// The owner path still frees it.
	mbuf.FromSeg(seg).Release()
	assert.Equal(t, 4, pool.FreeCount())
}

func TestPoolExhaustion(t *testing.T) {
	bindTestPool(t, 1)

	b, err := mbuf.New()
	require.NoError(t, err)
	defer b.Release()

	_, err = mbuf.New()
	assert.ErrorIs(t, err, api.ErrPoolExhausted)
}
