package buffer_test

import (
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vxcore/volcore/buffer"
)

func mustHandle(t *testing.T, m *buffer.Manager) buffer.Handle {
	t.Helper()
	h, err := m.Register().Wait()
	require.NoError(t, err)
	return h
}

func TestAllocateAndInfo(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	h := mustHandle(t, m)
	_, err := m.Allocate(h, 1024, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	info, err := m.Info(h).Wait()
	require.NoError(t, err)
	require.Equal(t, int64(1024), info.Size)
	require.True(t, info.Loaded)
}

// P1: unregistering a locked buffer is a fatal assertion, not a
// recoverable error. Because the panic actually fires on the
// manager's worker goroutine, an unrecovered panic there takes down
// the whole process rather than unwinding the caller's stack, so this
// is exercised with the standard subprocess-crash idiom instead of
// require.Panics.
func TestUnregisterLockedPanics(t *testing.T) {
	if os.Getenv("VOLCORE_BE_CRASHER") == "1" {
		m := buffer.NewManager()
		h := mustHandle(t, m)
		if _, err := m.Allocate(h, 16, buffer.PlainPolicy{}).Wait(); err != nil {
			panic(err)
		}
		tok, err := m.Lock(h).Wait()
		if err != nil {
			panic(err)
		}
		defer tok.Unlock()
		m.Unregister(h).Wait()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestUnregisterLockedPanics")
	cmd.Env = append(os.Environ(), "VOLCORE_BE_CRASHER=1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.False(t, exitErr.Success(), "unregistering a locked buffer must crash the process")
}

// P2: allocate; write; dump; restore; read yields the original bytes.
func TestDumpRestoreRoundTrip(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	h := mustHandle(t, m)
	_, err := m.Allocate(h, 8, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	tok, err := m.Lock(h).Wait()
	require.NoError(t, err)
	si, err := m.StreamInfo(h).Wait()
	require.NoError(t, err)
	_ = si.Stream.Close()
	tok.Unlock()

	// Write via SetBuffer so the region has known contents.
	want := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	_, err = m.SetBuffer(h, append([]byte(nil), want...), int64(len(want)), buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	ok, err := m.Dump(h).Wait()
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := m.IsLoaded(h).Wait()
	require.NoError(t, err)
	require.False(t, loaded)

	ok, err = m.Restore(h).Wait()
	require.NoError(t, err)
	require.True(t, ok)

	si, err = m.StreamInfo(h).Wait()
	require.NoError(t, err)
	got, err := io.ReadAll(si.Stream)
	require.NoError(t, err)
	si.Stream.Close()
	require.Equal(t, want, got)
}

// P3: dump; dump leaves the buffer in the same state as a single dump.
func TestDumpIdempotent(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	h := mustHandle(t, m)
	_, err := m.Allocate(h, 4, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	ok1, err := m.Dump(h).Wait()
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := m.Dump(h).Wait()
	require.NoError(t, err)
	require.False(t, ok2) // no-op: already unloaded

	info, err := m.Info(h).Wait()
	require.NoError(t, err)
	require.False(t, info.Loaded)
}

// P4: swap — after Swap completes, each handle reports the other's
// former size and content.
func TestSwapAtomicity(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	x := mustHandle(t, m)
	y := mustHandle(t, m)

	xData := make([]byte, 10)
	for i := range xData {
		xData[i] = 0xAA
	}
	yData := make([]byte, 20)
	for i := range yData {
		yData[i] = 0xBB
	}
	_, err := m.SetBuffer(x, xData, 10, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)
	_, err = m.SetBuffer(y, yData, 20, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	_, err = m.Swap(x, y).Wait()
	require.NoError(t, err)

	ix, err := m.Info(x).Wait()
	require.NoError(t, err)
	require.Equal(t, int64(20), ix.Size)

	si, err := m.StreamInfo(x).Wait()
	require.NoError(t, err)
	got, err := io.ReadAll(si.Stream)
	require.NoError(t, err)
	si.Stream.Close()
	for _, b := range got {
		require.Equal(t, byte(0xBB), b)
	}
}

// P6: lock(h) returns a token with loaded == true on success.
func TestLockRestoresOnDumpedBuffer(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	h := mustHandle(t, m)
	_, err := m.Allocate(h, 16, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)
	_, err = m.Dump(h).Wait()
	require.NoError(t, err)

	tok, err := m.Lock(h).Wait()
	require.NoError(t, err)
	defer tok.Unlock()

	info, err := m.Info(h).Wait()
	require.NoError(t, err)
	require.True(t, info.Loaded)
}

// Scenario 1: dump-valve under pressure.
func TestDumpValveScenario(t *testing.T) {
	m := buffer.NewManager(buffer.WithDumpPolicy(buffer.NewDumpValvePolicy(2 << 20)))
	defer m.Close()

	a := mustHandle(t, m)
	b := mustHandle(t, m)
	c := mustHandle(t, m)

	for _, h := range []buffer.Handle{a, b, c} {
		_, err := m.Allocate(h, 1<<20, buffer.PlainPolicy{}).Wait()
		require.NoError(t, err)
	}

	tokA, err := m.Lock(a).Wait()
	require.NoError(t, err)
	defer tokA.Unlock()

	d := mustHandle(t, m)
	_, err = m.Allocate(d, 1<<20, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	infoA, err := m.Info(a).Wait()
	require.NoError(t, err)
	require.True(t, infoA.Loaded, "locked buffer must never be evicted")

	infoD, err := m.Info(d).Wait()
	require.NoError(t, err)
	require.True(t, infoD.Loaded, "just-written buffer must not be evicted")

	stats, err := m.Stats().Wait()
	require.NoError(t, err)
	require.Equal(t, int64(4<<20), stats.TotalManaged)
	require.Contains(t, []int64{1 << 20, 2 << 20}, stats.TotalDumped)
}

// Scenario 3: swap of differently-sized buffers.
func TestSwapScenario(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	x := mustHandle(t, m)
	y := mustHandle(t, m)

	xData := make([]byte, 10)
	for i := range xData {
		xData[i] = 0xAA
	}
	yData := make([]byte, 20)
	for i := range yData {
		yData[i] = 0xBB
	}
	_, err := m.SetBuffer(x, xData, 10, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)
	_, err = m.SetBuffer(y, yData, 20, buffer.PlainPolicy{}).Wait()
	require.NoError(t, err)

	_, err = m.Swap(x, y).Wait()
	require.NoError(t, err)

	info, err := m.Info(x).Wait()
	require.NoError(t, err)
	require.Equal(t, int64(20), info.Size)
}

func TestNotManaged(t *testing.T) {
	m := buffer.NewManager()
	defer m.Close()

	_, err := m.Info(buffer.Handle(9999)).Wait()
	require.ErrorIs(t, err, buffer.ErrNotManaged)
}
