package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Backend{
		"file":   file,
		"badger": NewBadgerBackend(db),
	}
}

func TestIDSetRoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend, quietLogger())

			set := store.LoadIDSet("steam_games")
			require.Zero(t, set.Len())

			set.Add("730")
			set.Add("570")
			require.False(t, set.Add("730"))
			require.NoError(t, store.SaveIDSet("steam_games", set))

			loaded := store.LoadIDSet("steam_games")
			if diff := cmp.Diff([]string{"570", "730"}, loaded.Slice()); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestURLMapRoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend, quietLogger())

			m := store.LoadURLMap("xbox_games")
			m.Set("1001", "https://www.exophase.com/game/halo-infinite-xbox/")
			require.NoError(t, store.SaveURLMap("xbox_games", m))

			loaded := store.LoadURLMap("xbox_games")
			u, ok := loaded.Get("1001")
			require.True(t, ok)
			require.Equal(t, "https://www.exophase.com/game/halo-infinite-xbox/", u)
		})
	}
}

func TestWrongKindLoadsEmpty(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend, quietLogger())

			m := NewURLMap()
			m.Set("1", "u")
			require.NoError(t, store.SaveURLMap("players", m))

			require.Zero(t, store.LoadIDSet("players").Len())
			require.Equal(t, 1, store.LoadURLMap("players").Len())
		})
	}
}

func TestCorruptOrEmptyLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	store := NewStore(backend, quietLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("\x80\x04\x95 not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "list.json"), []byte(`["1","2"]`), 0o644))

	for _, key := range []string{"corrupt", "empty", "list", "absent"} {
		require.Zero(t, store.LoadIDSet(key).Len(), key)
		require.Zero(t, store.LoadURLMap(key).Len(), key)
	}
}

func TestUnreadableLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	// 目录占住文件名，读取时报错而不是不存在
	require.NoError(t, os.Mkdir(filepath.Join(dir, "weird.json"), 0o755))

	require.Zero(t, NewStore(backend, quietLogger()).LoadIDSet("weird").Len())
}

func TestIDSetConcurrentAdd(t *testing.T) {
	set := NewIDSet()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				set.Add(fmt.Sprintf("%d-%d", w, i%50))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 400, set.Len())
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	store, err := Open("badger", dir, quietLogger())
	require.NoError(t, err)
	require.NoError(t, store.SaveIDSet("seeds", NewIDSet("76561197960287930")))
	require.NoError(t, store.Close())

	store, err = Open("badger", dir, quietLogger())
	require.NoError(t, err)
	defer store.Close()
	require.True(t, store.LoadIDSet("seeds").Has("76561197960287930"))

	_, err = Open("redis", dir, quietLogger())
	require.Error(t, err)
}
