package rbtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeBasic(t *testing.T) {
	tr := New()

	t.Run("EmptyTree", func(t *testing.T) {
		assert.Equal(t, 0, tr.Size())

		_, ok := tr.Get(1)
		assert.False(t, ok)

		_, _, ok = tr.Min()
		assert.False(t, ok)

		_, _, ok = tr.Floor(100)
		assert.False(t, ok)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		tr.Put(10, []byte("ten"))
		tr.Put(5, []byte("five"))
		tr.Put(20, []byte("twenty"))

		assert.Equal(t, 3, tr.Size())

		v, ok := tr.Get(5)
		require.True(t, ok)
		assert.Equal(t, []byte("five"), v)

		_, ok = tr.Get(7)
		assert.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		tr.Put(10, []byte("TEN"))
		assert.Equal(t, 3, tr.Size())

		v, ok := tr.Get(10)
		require.True(t, ok)
		assert.Equal(t, []byte("TEN"), v)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.True(t, tr.Delete(5))
		assert.False(t, tr.Delete(5))
		assert.Equal(t, 2, tr.Size())

		_, ok := tr.Get(5)
		assert.False(t, ok)
	})
}

func TestTreeFloor(t *testing.T) {
	tr := New()
	for _, k := range []int64{10, 20, 30, 40} {
		tr.Put(k, []byte{byte(k)})
	}

	cases := []struct {
		name   string
		query  int64
		want   int64
		wantOK bool
	}{
		{"ExactMatch", 20, 20, true},
		{"Between", 25, 20, true},
		{"AboveAll", 100, 40, true},
		{"BelowAll", 5, 0, false},
		{"AtMin", 10, 10, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, _, ok := tr.Floor(tc.query)
			assert.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, tc.want, k)
			}
		})
	}
}

func TestTreeMin(t *testing.T) {
	tr := New()
	tr.Put(30, nil)
	tr.Put(10, nil)
	tr.Put(20, nil)

	k, _, ok := tr.Min()
	require.True(t, ok)
	assert.Equal(t, int64(10), k)

	tr.Delete(10)
	k, _, ok = tr.Min()
	require.True(t, ok)
	assert.Equal(t, int64(20), k)
}

func TestTreeAscendOrder(t *testing.T) {
	tr := New()
	keys := []int64{42, 7, 99, 1, 56, 23, 88, 14}
	for _, k := range keys {
		tr.Put(k, nil)
	}

	var got []int64
	tr.Ascend(func(k int64, _ []byte) bool {
		got = append(got, k)
		return true
	})

	want := append([]int64(nil), keys...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, got)
}

func TestTreeAscendEarlyStop(t *testing.T) {
	tr := New()
	for i := int64(1); i <= 10; i++ {
		tr.Put(i, nil)
	}

	var got []int64
	tr.Ascend(func(k int64, _ []byte) bool {
		got = append(got, k)
		return len(got) < 3
	})
	assert.Equal(t, []int64{1, 2, 3}, got)
}

// TestTreeRandomized drives the tree against a map oracle through a long
// sequence of random inserts and deletes, checking invariants as it goes.
func TestTreeRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := New()
	oracle := make(map[int64][]byte)

	for i := 0; i < 5000; i++ {
		k := int64(rng.Intn(1000))
		if rng.Intn(3) == 0 {
			delete(oracle, k)
			tr.Delete(k)
		} else {
			v := []byte{byte(i), byte(i >> 8)}
			oracle[k] = v
			tr.Put(k, v)
		}
	}

	require.Equal(t, len(oracle), tr.Size())

	for k, want := range oracle {
		v, ok := tr.Get(k)
		require.True(t, ok, "key %d missing", k)
		require.Equal(t, want, v)
	}

	// In-order traversal must yield strictly increasing keys.
	prev := int64(-1)
	tr.Ascend(func(k int64, _ []byte) bool {
		require.Greater(t, k, prev)
		prev = k
		return true
	})

	assertRedBlackInvariants(t, tr)
}

// assertRedBlackInvariants checks the red-black discipline: the root is
// black, no red node has a red child, and every root-to-leaf path carries
// the same number of black nodes.
func assertRedBlackInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	if tr.root == nil {
		return
	}
	require.Equal(t, black, tr.root.color, "root must be black")

	var check func(n *Node) int
	check = func(n *Node) int {
		if n == nil {
			return 1
		}
		if isRed(n) {
			require.False(t, isRed(n.Left), "red node %d has red left child", n.Key)
			require.False(t, isRed(n.Right), "red node %d has red right child", n.Key)
		}
		lh := check(n.Left)
		rh := check(n.Right)
		require.Equal(t, lh, rh, "black-height mismatch at %d", n.Key)
		if !isRed(n) {
			lh++
		}
		return lh
	}
	check(tr.root)
}
