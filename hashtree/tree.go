package hashtree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/foliavcs/folia/entity"
)

// Kind classifies a node's position in the tree.
type Kind int

const (
	// SuperRoot is the single synthetic root of the whole tree.
	SuperRoot Kind = iota
	// Root is an entity whose parent id is empty.
	Root
	// NonRoot is an entity parented by another entity.
	NonRoot
)

var (
	// ErrOrphanSubtree is returned when updateRootHash finds a node whose
	// declared parent was never attached to the tree.
	ErrOrphanSubtree = errors.New("hashtree: orphan subtree at hash compute")
	// ErrNonLeafRemoval is returned when a tombstoned node still has
	// live (non-tombstoned) children at sweep time.
	ErrNonLeafRemoval = errors.New("hashtree: cannot remove node with live children")
	// ErrNotFound is returned when an operation targets a missing node.
	ErrNotFound = errors.New("hashtree: node not found")
)

type node struct {
	kind           Kind
	entityID       string
	parentID       string
	entityDataHash Hash
	hash           Hash

	children     map[string]*node
	sortedChild  []*node
	childrenSort bool

	outdated bool
	removed  bool
}

func newNode(kind Kind, entityID, parentID string) *node {
	return &node{
		kind:     kind,
		entityID: entityID,
		parentID: parentID,
		children: make(map[string]*node),
		outdated: true,
	}
}

// Tree is the hash tree for one head-store snapshot.
type Tree struct {
	root *node
	// byID indexes every non-super-root node currently attached, keyed by
	// entity id, for O(1) lookup during delta application.
	byID map[string]*node
	// pending holds nodes staged under a parent id that has not yet been
	// inserted.
	pending map[string][]*node

	cleanupNeeded bool
}

// New returns an empty Tree with only the super-root.
func New() *Tree {
	return &Tree{
		root:    newNode(SuperRoot, "", ""),
		byID:    make(map[string]*node),
		pending: make(map[string][]*node),
	}
}

func (t *Tree) markOutdated(n *node) {
	for cur := n; cur != nil; {
		if cur.outdated {
			return
		}
		cur.outdated = true
		if cur.kind == SuperRoot {
			return
		}
		cur = t.parentOf(cur)
	}
}

func (t *Tree) parentOf(n *node) *node {
	if n.kind == Root {
		return t.root
	}
	if p, ok := t.byID[n.parentID]; ok {
		return p
	}
	return nil
}

func (t *Tree) attach(parent, child *node) {
	parent.children[child.entityID] = child
	parent.childrenSort = true
	t.markOutdated(parent)
}

// Insert adds a new node for e, hashing its data and attaching it under
// its parent (the super-root if e.ParentID is empty). If the parent is
// not yet attached, the node is staged until the parent arrives.
func (t *Tree) Insert(e *entity.Entity) error {
	dataHash, err := HashEntity(e)
	if err != nil {
		return err
	}
	kind := NonRoot
	if e.ParentID == "" {
		kind = Root
	}
	n := newNode(kind, e.ID, e.ParentID)
	n.entityDataHash = dataHash
	t.byID[e.ID] = n

	if kind == Root {
		t.attach(t.root, n)
	} else if parent, ok := t.byID[e.ParentID]; ok {
		t.attach(parent, n)
	} else {
		t.pending[e.ParentID] = append(t.pending[e.ParentID], n)
	}

	if staged, ok := t.pending[e.ID]; ok {
		for _, child := range staged {
			t.attach(n, child)
		}
		delete(t.pending, e.ID)
	}
	return nil
}

// Update rehashes the node for e's current form and marks it outdated.
func (t *Tree) Update(e *entity.Entity) error {
	n, ok := t.byID[e.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	dataHash, err := HashEntity(e)
	if err != nil {
		return err
	}
	n.entityDataHash = dataHash
	t.markOutdated(n)
	return nil
}

// Remove tombstones the node for entityID; its hash contribution is swept
// on the next root recompute.
func (t *Tree) Remove(entityID string) error {
	n, ok := t.byID[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, entityID)
	}
	n.removed = true
	t.cleanupNeeded = true
	t.markOutdated(n)
	return nil
}

func (t *Tree) sweep(n *node) error {
	for id, child := range n.children {
		if err := t.sweep(child); err != nil {
			return err
		}
		if child.removed {
			if len(child.children) > 0 {
				return fmt.Errorf("%w: %s", ErrNonLeafRemoval, child.entityID)
			}
			delete(n.children, id)
			n.childrenSort = true
			delete(t.byID, child.entityID)
		}
	}
	return nil
}

func (t *Tree) sortChildren(n *node) {
	if !n.childrenSort {
		return
	}
	sorted := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].entityID < sorted[j].entityID })
	n.sortedChild = sorted
	n.childrenSort = false
}

func (t *Tree) recompute(n *node) (Hash, error) {
	t.sortChildren(n)
	if !n.outdated {
		return n.hash, nil
	}
	childHashes := make([][]byte, 0, len(n.sortedChild))
	for _, c := range n.sortedChild {
		ch, err := t.recompute(c)
		if err != nil {
			return Hash{}, err
		}
		childHashes = append(childHashes, ch.Bytes())
	}
	h, err := combine(n.entityDataHash, childHashes)
	if err != nil {
		return Hash{}, err
	}
	n.hash = h
	n.outdated = false
	return h, nil
}

func (t *Tree) assertNoOrphans() error {
	if len(t.pending) == 0 {
		return nil
	}
	for parentID := range t.pending {
		return fmt.Errorf("%w: missing parent %s", ErrOrphanSubtree, parentID)
	}
	return nil
}

// UpdateRootHash asserts no orphan subtrees remain, sweeps tombstoned
// leaves, re-sorts any node whose children changed, and recomputes every
// outdated node's hash bottom-up, returning the new snapshot digest.
func (t *Tree) UpdateRootHash() (Hash, error) {
	if err := t.assertNoOrphans(); err != nil {
		return Hash{}, err
	}
	if t.cleanupNeeded {
		if err := t.sweep(t.root); err != nil {
			return Hash{}, err
		}
		t.cleanupNeeded = false
	}
	return t.recompute(t.root)
}

// RootHash returns the current root hash without recomputation; callers
// must call UpdateRootHash at least once after any mutation before
// trusting this value.
func (t *Tree) RootHash() Hash {
	return t.root.hash
}
