package store

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prizedraw/internal/model"
)

func TestTreeStoreBasic(t *testing.T) {
	s := NewTreeStore()

	t.Run("PutAndGet", func(t *testing.T) {
		prize := &model.Prize{ID: 1, Name: "iPhone", TotalAmount: 5, RemainingAmount: 5}
		require.NoError(t, s.Put(NamespacePrizes, 1, prize))

		var got model.Prize
		ok, err := s.Get(NamespacePrizes, 1, &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "iPhone", got.Name)
		assert.Equal(t, 5, got.TotalAmount)
	})

	t.Run("GetMissing", func(t *testing.T) {
		var got model.Prize
		ok, err := s.Get(NamespacePrizes, 999, &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Put(NamespacePrizes, 1, &model.Prize{ID: 1, Name: "AirPods"}))
		var got model.Prize
		ok, err := s.Get(NamespacePrizes, 1, &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "AirPods", got.Name)
		assert.Equal(t, 1, s.Size(NamespacePrizes))
	})

	t.Run("Remove", func(t *testing.T) {
		assert.True(t, s.Remove(NamespacePrizes, 1))
		assert.False(t, s.Remove(NamespacePrizes, 1))
		assert.Equal(t, 0, s.Size(NamespacePrizes))
	})

	t.Run("EncodingError", func(t *testing.T) {
		err := s.Put(NamespacePrizes, 2, make(chan int))
		require.Error(t, err)

		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, NamespacePrizes, encErr.Namespace)

		// Failed put leaves the store untouched.
		var got model.Prize
		ok, getErr := s.Get(NamespacePrizes, 2, &got)
		require.NoError(t, getErr)
		assert.False(t, ok)
	})
}

func TestTreeStoreFloor(t *testing.T) {
	s := NewTreeStore()
	for _, key := range []int64{100, 200, 300} {
		require.NoError(t, s.Put(NamespaceWinRecords, key, &model.WinRecord{ID: key}))
	}

	var rec model.WinRecord
	k, ok, err := s.Floor(NamespaceWinRecords, 250, &rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), k)
	assert.Equal(t, int64(200), rec.ID)

	_, ok, err = s.Floor(NamespaceWinRecords, 50, &rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTreeStoreScan(t *testing.T) {
	s := NewTreeStore()
	keys := []int64{30, 10, 20, 50, 40}
	for _, key := range keys {
		require.NoError(t, s.Put(NamespaceUsers, key, &model.User{ID: uint64(key)}))
	}

	t.Run("OrderedFull", func(t *testing.T) {
		var got []int64
		s.Scan(NamespaceUsers, 0, func(key int64, _ []byte) bool {
			got = append(got, key)
			return true
		})
		assert.Equal(t, []int64{10, 20, 30, 40, 50}, got)
	})

	t.Run("Limited", func(t *testing.T) {
		var got []int64
		s.Scan(NamespaceUsers, 2, func(key int64, _ []byte) bool {
			got = append(got, key)
			return true
		})
		assert.Equal(t, []int64{10, 20}, got)
	})

	t.Run("ValuesDecode", func(t *testing.T) {
		s.Scan(NamespaceUsers, 1, func(key int64, value []byte) bool {
			var u model.User
			require.NoError(t, json.Unmarshal(value, &u))
			assert.Equal(t, uint64(key), u.ID)
			return true
		})
	})
}

func TestTreeStoreClear(t *testing.T) {
	s := NewTreeStore()
	require.NoError(t, s.Put(NamespaceUsers, 1, &model.User{ID: 1}))
	require.NoError(t, s.Put(NamespacePrizes, 1, &model.Prize{ID: 1}))

	s.Clear(NamespaceUsers)
	assert.Equal(t, 0, s.Size(NamespaceUsers))
	assert.Equal(t, 1, s.Size(NamespacePrizes))

	s.ClearAll()
	assert.Equal(t, 0, s.Size(NamespacePrizes))
}

func TestTreeStoreDirtyFlag(t *testing.T) {
	s := NewTreeStore()
	assert.False(t, s.IsDirty())

	require.NoError(t, s.Put(NamespaceUsers, 1, &model.User{ID: 1}))
	assert.True(t, s.IsDirty())

	s.Snapshot()
	assert.False(t, s.IsDirty())

	s.Remove(NamespaceUsers, 1)
	assert.True(t, s.IsDirty())

	s.Snapshot()
	s.MarkDirty()
	assert.True(t, s.IsDirty())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewTreeStore()
	require.NoError(t, s.Put(NamespaceActivities, 1, &model.Activity{ID: 1, Title: "launch"}))
	require.NoError(t, s.Put(NamespaceUsers, 7, &model.User{ID: 7, Username: "alice", DrawQuota: 10}))
	require.NoError(t, s.Put(NamespaceUsers, 3, &model.User{ID: 3, Username: "bob"}))
	require.NoError(t, s.Put(NamespaceWinRecords, 99, &model.WinRecord{ID: 99, PrizeName: "AirPods"}))

	snap := s.Snapshot()

	// A snapshot survives its own JSON round trip (the checkpoint format).
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := NewTreeStore()
	restored.Restore(&decoded)

	for _, name := range Namespaces {
		assert.Equal(t, s.Size(name), restored.Size(name), "namespace %s", name)

		type pair struct {
			key   int64
			value string
		}
		collect := func(st *TreeStore) []pair {
			var out []pair
			st.Scan(name, 0, func(key int64, value []byte) bool {
				out = append(out, pair{key, string(value)})
				return true
			})
			return out
		}
		assert.Equal(t, collect(s), collect(restored), "namespace %s", name)
	}

	var u model.User
	ok, err := restored.Get(NamespaceUsers, 7, &u)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, 10, u.DrawQuota)
}

func TestSnapshotCoversCustomNamespaces(t *testing.T) {
	s := NewTreeStore()
	require.NoError(t, s.Put(NamespaceUsers, 1, &model.User{ID: 1, Username: "alice"}))
	require.NoError(t, s.Put("audit_log", 5, map[string]string{"action": "login"}))

	snap := s.Snapshot()
	require.Contains(t, snap.Namespaces, "audit_log", "snapshot includes namespaces beyond the built-in list")

	restored := NewTreeStore()
	restored.Restore(snap)

	var entry map[string]string
	ok, err := restored.Get("audit_log", 5, &entry)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "login", entry["action"])
}

func TestTreeStoreConcurrentAccess(t *testing.T) {
	s := NewTreeStore()
	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := int64(w*perWriter + i)
				_ = s.Put(NamespaceUsers, key, &model.User{ID: uint64(key)})
			}
		}(w)
	}

	// Concurrent readers must never observe torn state.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				var u model.User
				_, _ = s.Get(NamespaceUsers, int64(i), &u)
				_ = s.Size(NamespaceUsers)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, s.Size(NamespaceUsers))
}
