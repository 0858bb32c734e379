package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/repo"
)

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope", "state.json"))
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Records)
	assert.Zero(t, st.IntervalSeconds)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "state.json")
	s := New(path)

	in := repo.State{
		Records: []string{
			`{"id":"b","active":false,"history":[1]}`,
			`{"id":"a","active":true,"history":[]}`,
		},
		IntervalSeconds: 30,
	}
	require.NoError(t, s.Save(ctx, in))

	got, err := New(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, got.IntervalSeconds)
	assert.Equal(t, []string{in.Records[1], in.Records[0]}, got.Records, "records are stored sorted")

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := New(path).Load(context.Background())
	assert.Error(t, err)
}

func TestStore_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	st, err := New(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Records)
}

func TestStore_WatchIgnoresOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path)

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, zap.NewNop(), func() { calls.Add(1) }) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Save(ctx, repo.State{IntervalSeconds: 10}))
	time.Sleep(4 * debounceInterval)
	assert.Zero(t, calls.Load(), "own save must not trigger a reload")

	require.NoError(t, os.WriteFile(path, []byte(`{"interval_seconds":20,"hosts_set":[]}`), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
