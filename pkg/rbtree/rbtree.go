// Package rbtree implements an ordered map from int64 keys to opaque byte
// values, backed by a left-balanced red-black tree. It is the index
// structure underneath the in-memory entity store: O(log n) point lookups,
// predecessor (floor) queries and ordered traversal without external
// dependencies on the hot path.
//
// The tree itself is not safe for concurrent use; callers serialize access
// (the store wraps every tree in a sync.RWMutex).
package rbtree

const (
	red   = true
	black = false
)

// Node is a single tree node. Exported fields let the store walk the tree
// during snapshot without reflection.
type Node struct {
	Key         int64
	Value       []byte
	Left, Right *Node
	parent      *Node
	color       bool
}

// Tree is an ordered int64 -> []byte map.
type Tree struct {
	root *Node
	size int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Size returns the number of entries.
func (t *Tree) Size() int {
	return t.size
}

// Get returns the value stored under key, or nil and false if absent.
func (t *Tree) Get(key int64) ([]byte, bool) {
	n := t.root
	for n != nil {
		switch {
		case key < n.Key:
			n = n.Left
		case key > n.Key:
			n = n.Right
		default:
			return n.Value, true
		}
	}
	return nil, false
}

// Floor returns the entry with the greatest key <= the given key.
func (t *Tree) Floor(key int64) (int64, []byte, bool) {
	var best *Node
	n := t.root
	for n != nil {
		switch {
		case key < n.Key:
			n = n.Left
		case key > n.Key:
			best = n
			n = n.Right
		default:
			return n.Key, n.Value, true
		}
	}
	if best == nil {
		return 0, nil, false
	}
	return best.Key, best.Value, true
}

// Min returns the smallest entry, or false if the tree is empty.
func (t *Tree) Min() (int64, []byte, bool) {
	n := t.root
	if n == nil {
		return 0, nil, false
	}
	for n.Left != nil {
		n = n.Left
	}
	return n.Key, n.Value, true
}

// Put inserts or overwrites the value under key.
func (t *Tree) Put(key int64, value []byte) {
	var parent *Node
	n := t.root
	for n != nil {
		parent = n
		switch {
		case key < n.Key:
			n = n.Left
		case key > n.Key:
			n = n.Right
		default:
			n.Value = value
			return
		}
	}

	fresh := &Node{Key: key, Value: value, parent: parent, color: red}
	switch {
	case parent == nil:
		t.root = fresh
	case key < parent.Key:
		parent.Left = fresh
	default:
		parent.Right = fresh
	}
	t.size++
	t.fixInsert(fresh)
}

// Delete removes the entry under key. Returns false if the key was absent.
func (t *Tree) Delete(key int64) bool {
	n := t.root
	for n != nil {
		switch {
		case key < n.Key:
			n = n.Left
		case key > n.Key:
			n = n.Right
		default:
			t.delete(n)
			t.size--
			return true
		}
	}
	return false
}

// Ascend walks entries in ascending key order, calling fn for each until fn
// returns false or the tree is exhausted.
func (t *Tree) Ascend(fn func(key int64, value []byte) bool) {
	n := t.root
	var stack []*Node
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.Left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n.Key, n.Value) {
			return
		}
		n = n.Right
	}
}

func isRed(n *Node) bool {
	return n != nil && n.color == red
}

func (t *Tree) rotateLeft(n *Node) {
	r := n.Right
	n.Right = r.Left
	if r.Left != nil {
		r.Left.parent = n
	}
	r.parent = n.parent
	switch {
	case n.parent == nil:
		t.root = r
	case n == n.parent.Left:
		n.parent.Left = r
	default:
		n.parent.Right = r
	}
	r.Left = n
	n.parent = r
}

func (t *Tree) rotateRight(n *Node) {
	l := n.Left
	n.Left = l.Right
	if l.Right != nil {
		l.Right.parent = n
	}
	l.parent = n.parent
	switch {
	case n.parent == nil:
		t.root = l
	case n == n.parent.Right:
		n.parent.Right = l
	default:
		n.parent.Left = l
	}
	l.Right = n
	n.parent = l
}

func (t *Tree) fixInsert(n *Node) {
	for n.parent != nil && isRed(n.parent) {
		grand := n.parent.parent
		if n.parent == grand.Left {
			uncle := grand.Right
			if isRed(uncle) {
				n.parent.color = black
				uncle.color = black
				grand.color = red
				n = grand
				continue
			}
			if n == n.parent.Right {
				n = n.parent
				t.rotateLeft(n)
			}
			n.parent.color = black
			grand.color = red
			t.rotateRight(grand)
		} else {
			uncle := grand.Left
			if isRed(uncle) {
				n.parent.color = black
				uncle.color = black
				grand.color = red
				n = grand
				continue
			}
			if n == n.parent.Left {
				n = n.parent
				t.rotateRight(n)
			}
			n.parent.color = black
			grand.color = red
			t.rotateLeft(grand)
		}
	}
	t.root.color = black
}

func minimum(n *Node) *Node {
	for n.Left != nil {
		n = n.Left
	}
	return n
}

// transplant replaces the subtree rooted at u with the subtree rooted at v.
func (t *Tree) transplant(u, v *Node) {
	switch {
	case u.parent == nil:
		t.root = v
	case u == u.parent.Left:
		u.parent.Left = v
	default:
		u.parent.Right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

func (t *Tree) delete(z *Node) {
	y := z
	yColor := y.color
	var x *Node
	var xParent *Node

	switch {
	case z.Left == nil:
		x = z.Right
		xParent = z.parent
		t.transplant(z, z.Right)
	case z.Right == nil:
		x = z.Left
		xParent = z.parent
		t.transplant(z, z.Left)
	default:
		y = minimum(z.Right)
		yColor = y.color
		x = y.Right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.Right)
			y.Right = z.Right
			y.Right.parent = y
		}
		t.transplant(z, y)
		y.Left = z.Left
		y.Left.parent = y
		y.color = z.color
	}

	if yColor == black {
		t.fixDelete(x, xParent)
	}
}

func (t *Tree) fixDelete(x *Node, parent *Node) {
	for x != t.root && !isRed(x) {
		if parent == nil {
			break
		}
		if x == parent.Left {
			sib := parent.Right
			if isRed(sib) {
				sib.color = black
				parent.color = red
				t.rotateLeft(parent)
				sib = parent.Right
			}
			if sib == nil {
				x = parent
				parent = parent.parent
				continue
			}
			if !isRed(sib.Left) && !isRed(sib.Right) {
				sib.color = red
				x = parent
				parent = parent.parent
			} else {
				if !isRed(sib.Right) {
					if sib.Left != nil {
						sib.Left.color = black
					}
					sib.color = red
					t.rotateRight(sib)
					sib = parent.Right
				}
				sib.color = parent.color
				parent.color = black
				if sib.Right != nil {
					sib.Right.color = black
				}
				t.rotateLeft(parent)
				x = t.root
				parent = nil
			}
		} else {
			sib := parent.Left
			if isRed(sib) {
				sib.color = black
				parent.color = red
				t.rotateRight(parent)
				sib = parent.Left
			}
			if sib == nil {
				x = parent
				parent = parent.parent
				continue
			}
			if !isRed(sib.Left) && !isRed(sib.Right) {
				sib.color = red
				x = parent
				parent = parent.parent
			} else {
				if !isRed(sib.Left) {
					if sib.Right != nil {
						sib.Right.color = black
					}
					sib.color = red
					t.rotateLeft(sib)
					sib = parent.Left
				}
				sib.color = parent.color
				parent.color = black
				if sib.Left != nil {
					sib.Left.color = black
				}
				t.rotateRight(parent)
				x = t.root
				parent = nil
			}
		}
	}
	if x != nil {
		x.color = black
	}
}
