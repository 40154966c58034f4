package menu

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdesk/staffdesk/internal/shared"
)

type memoryRepo struct {
	nodes  map[int64]Node
	nextID int64
	// beforeCommit runs between a transaction's work and its commit, standing
	// in for another transaction that commits first.
	beforeCommit func(m *memoryRepo)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nodes: map[int64]Node{}}
}

func (m *memoryRepo) put(n Node) Node {
	if n.ID == 0 {
		m.nextID++
		n.ID = m.nextID
	} else if n.ID > m.nextID {
		m.nextID = n.ID
	}
	m.nodes[n.ID] = n
	return n
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := &memoryRepo{nodes: maps.Clone(m.nodes), nextID: m.nextID}
	if err := fn(ctx, work); err != nil {
		return err
	}
	if m.beforeCommit == nil {
		m.nodes, m.nextID = work.nodes, work.nextID
		return nil
	}
	m.beforeCommit(m)
	merged := maps.Clone(m.nodes)
	maps.Copy(merged, work.nodes)
	if hasDuplicateOrder(merged) {
		return ErrOrderContention
	}
	m.nodes, m.nextID = merged, max(m.nextID, work.nextID)
	return nil
}

// hasDuplicateOrder mirrors the deferred sibling-order constraint.
func hasDuplicateOrder(nodes map[int64]Node) bool {
	type key struct {
		parent int64
		order  int
	}
	seen := map[key]bool{}
	for _, n := range nodes {
		k := key{order: n.DisplayOrder}
		if n.ParentID != nil {
			k.parent = *n.ParentID
		}
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}

func (m *memoryRepo) ListNodes(ctx context.Context) ([]Node, error) {
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (m *memoryRepo) GetNode(ctx context.Context, id int64) (Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("menu node %d: %w", id, shared.ErrNotFound)
	}
	return n, nil
}

func (m *memoryRepo) Siblings(ctx context.Context, parentID *int64) ([]Node, error) {
	var out []Node
	for _, n := range m.nodes {
		if sameParent(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	sortSiblings(out)
	return out, nil
}

func (m *memoryRepo) Children(ctx context.Context, parentID int64) ([]Node, error) {
	return m.Siblings(ctx, &parentID)
}

func (m *memoryRepo) MaxSiblingOrder(ctx context.Context, parentID *int64) (int, error) {
	max := 0
	for _, n := range m.nodes {
		if sameParent(n.ParentID, parentID) && n.DisplayOrder > max {
			max = n.DisplayOrder
		}
	}
	return max, nil
}

func (m *memoryRepo) InsertNode(ctx context.Context, n Node) (Node, error) {
	return m.put(n), nil
}

func (m *memoryRepo) UpdateNode(ctx context.Context, n Node) (Node, error) {
	cur, ok := m.nodes[n.ID]
	if !ok {
		return Node{}, shared.ErrNotFound
	}
	cur.Name, cur.URL, cur.Icon, cur.IsVisible = n.Name, n.URL, n.Icon, n.IsVisible
	m.nodes[n.ID] = cur
	return cur, nil
}

func (m *memoryRepo) SetOrder(ctx context.Context, id int64, order int) error {
	n := m.nodes[id]
	n.DisplayOrder = order
	m.nodes[id] = n
	return nil
}

func (m *memoryRepo) DeleteNode(ctx context.Context, id int64) error {
	if _, ok := m.nodes[id]; !ok {
		return shared.ErrNotFound
	}
	for _, n := range m.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			return errors.New("foreign key violation: menu_nodes_parent_id_fkey")
		}
	}
	delete(m.nodes, id)
	return nil
}

func ptr(id int64) *int64 { return &id }

func TestAddNodeAppendsAfterMaxSiblingOrder(t *testing.T) {
	repo := newMemoryRepo()
	parent := repo.put(Node{Name: "Reports", DisplayOrder: 1, Kind: KindCustom, IsVisible: true})
	repo.put(Node{ParentID: ptr(parent.ID), Name: "A", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(parent.ID), Name: "B", DisplayOrder: 3, Kind: KindCustom})
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	n, err := svc.AddNode(ctx, NodeInput{ParentID: ptr(parent.ID), Name: " C ", IsVisible: true})
	require.NoError(t, err)
	assert.Equal(t, 4, n.DisplayOrder)
	assert.Equal(t, "C", n.Name)
	assert.Equal(t, KindCustom, n.Kind)

	empty, err := svc.AddNode(ctx, NodeInput{ParentID: ptr(n.ID), Name: "leaf"})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.DisplayOrder)

	root, err := svc.AddNode(ctx, NodeInput{Name: "Second root"})
	require.NoError(t, err)
	assert.Equal(t, 2, root.DisplayOrder)

	_, err = svc.AddNode(ctx, NodeInput{ParentID: ptr(999), Name: "orphan"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMoveUpThenDownRestoresOrder(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.put(Node{Name: "A", DisplayOrder: 1, Kind: KindCustom})
	b := repo.put(Node{Name: "B", DisplayOrder: 2, Kind: KindCustom})
	c := repo.put(Node{Name: "C", DisplayOrder: 5, Kind: KindCustom})
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.MoveUp(ctx, b.ID))
	assert.Equal(t, 2, repo.nodes[a.ID].DisplayOrder)
	assert.Equal(t, 1, repo.nodes[b.ID].DisplayOrder)

	require.NoError(t, svc.MoveDown(ctx, b.ID))
	assert.Equal(t, 1, repo.nodes[a.ID].DisplayOrder)
	assert.Equal(t, 2, repo.nodes[b.ID].DisplayOrder)
	assert.Equal(t, 5, repo.nodes[c.ID].DisplayOrder)

	require.NoError(t, svc.MoveDown(ctx, b.ID))
	assert.Equal(t, 5, repo.nodes[b.ID].DisplayOrder)
	assert.Equal(t, 2, repo.nodes[c.ID].DisplayOrder)
}

func TestMoveAtEndsIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.put(Node{Name: "A", DisplayOrder: 1, Kind: KindCustom})
	b := repo.put(Node{Name: "B", DisplayOrder: 2, Kind: KindCustom})
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.MoveUp(ctx, a.ID))
	require.NoError(t, svc.MoveDown(ctx, b.ID))
	assert.Equal(t, 1, repo.nodes[a.ID].DisplayOrder)
	assert.Equal(t, 2, repo.nodes[b.ID].DisplayOrder)

	assert.ErrorIs(t, svc.MoveUp(ctx, 999), shared.ErrNotFound)
}

func TestMoveStaysWithinSiblingGroup(t *testing.T) {
	repo := newMemoryRepo()
	p1 := repo.put(Node{Name: "P1", DisplayOrder: 1, Kind: KindCustom})
	p2 := repo.put(Node{Name: "P2", DisplayOrder: 2, Kind: KindCustom})
	x := repo.put(Node{ParentID: ptr(p2.ID), Name: "X", DisplayOrder: 1, Kind: KindCustom})
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.MoveUp(context.Background(), x.ID))
	assert.Equal(t, 1, repo.nodes[x.ID].DisplayOrder)
	assert.Equal(t, 1, repo.nodes[p1.ID].DisplayOrder)
}

func TestDeleteSystemNodeRefused(t *testing.T) {
	repo := newMemoryRepo()
	sys := repo.put(Node{Name: "Home", DisplayOrder: 1, Kind: KindSystem})
	svc := NewService(repo, nil, nil)

	_, err := svc.DeleteNode(context.Background(), "admin", sys.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	var policy *shared.PolicyError
	assert.True(t, errors.As(err, &policy))
	assert.Contains(t, repo.nodes, sys.ID)
}

func TestDeleteCustomNodeCascadesToChildren(t *testing.T) {
	repo := newMemoryRepo()
	keep := repo.put(Node{Name: "Keep", DisplayOrder: 1, Kind: KindCustom})
	parent := repo.put(Node{Name: "Parent", DisplayOrder: 2, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(parent.ID), Name: "c1", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(parent.ID), Name: "c2", DisplayOrder: 2, Kind: KindCustom})
	svc := NewService(repo, nil, nil)

	removed, err := svc.DeleteNode(context.Background(), "admin", parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Len(t, repo.nodes, 1)
	assert.Contains(t, repo.nodes, keep.ID)
}

func TestDeleteWalksWholeSubtree(t *testing.T) {
	repo := newMemoryRepo()
	top := repo.put(Node{Name: "Top", DisplayOrder: 1, Kind: KindCustom})
	mid := repo.put(Node{ParentID: ptr(top.ID), Name: "Mid", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(mid.ID), Name: "Leaf", DisplayOrder: 1, Kind: KindCustom})
	svc := NewService(repo, nil, nil)

	removed, err := svc.DeleteNode(context.Background(), "admin", top.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Empty(t, repo.nodes)
}

func TestDeleteRefusesSubtreeWithSystemNode(t *testing.T) {
	repo := newMemoryRepo()
	top := repo.put(Node{Name: "Top", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(top.ID), Name: "Custom", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ParentID: ptr(top.ID), Name: "Users", DisplayOrder: 2, Kind: KindSystem})
	svc := NewService(repo, nil, nil)

	_, err := svc.DeleteNode(context.Background(), "admin", top.ID)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, repo.nodes, 3)
}

func TestEditAndToggleVisibility(t *testing.T) {
	repo := newMemoryRepo()
	n := repo.put(Node{Name: "Old", DisplayOrder: 7, Kind: KindSystem, IsVisible: true})
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	edited, err := svc.EditNode(ctx, n.ID, EditInput{Name: "New", URL: "/new", Icon: "star", IsVisible: true})
	require.NoError(t, err)
	assert.Equal(t, "New", edited.Name)
	assert.Equal(t, 7, edited.DisplayOrder)
	assert.Equal(t, KindSystem, edited.Kind)

	toggled, err := svc.ToggleVisibility(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsVisible)
	toggled, err = svc.ToggleVisibility(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsVisible)
}

func TestTreeNestsAndOrders(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.put(Node{Name: "Administration", DisplayOrder: 2, Kind: KindSystem, IsVisible: true})
	repo.put(Node{Name: "Home", DisplayOrder: 1, Kind: KindSystem, IsVisible: true})
	repo.put(Node{ParentID: ptr(admin.ID), Name: "Users", DisplayOrder: 2, IsVisible: true})
	hidden := repo.put(Node{ParentID: ptr(admin.ID), Name: "Hidden", DisplayOrder: 1, IsVisible: false})
	repo.put(Node{ParentID: ptr(hidden.ID), Name: "Under hidden", DisplayOrder: 1, IsVisible: true})
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Home", tree[0].Name)
	require.Len(t, tree[1].Children, 2)
	assert.Equal(t, "Hidden", tree[1].Children[0].Name)
	assert.Len(t, tree[1].Children[0].Children, 1)

	visible, err := svc.VisibleTree(ctx)
	require.NoError(t, err)
	require.Len(t, visible[1].Children, 1)
	assert.Equal(t, "Users", visible[1].Children[0].Name)
}

func TestAddNodeRetriesWhenSiblingOrderIsTaken(t *testing.T) {
	repo := newMemoryRepo()
	repo.put(Node{ID: 1, Name: "a", DisplayOrder: 1, Kind: KindCustom})
	repo.put(Node{ID: 2, Name: "b", DisplayOrder: 3, Kind: KindCustom})
	concurrent := 0
	repo.beforeCommit = func(m *memoryRepo) {
		if concurrent == 0 {
			m.put(Node{ID: 50, Name: "other", DisplayOrder: 4, Kind: KindCustom})
		}
		concurrent++
	}
	svc := NewService(repo, nil, nil)

	created, err := svc.AddNode(context.Background(), NodeInput{Name: "c", IsVisible: true})
	require.NoError(t, err)
	assert.Equal(t, 5, created.DisplayOrder)
	assert.Equal(t, 2, concurrent, "second attempt reads the committed order")
	assert.False(t, hasDuplicateOrder(repo.nodes))
	assert.Len(t, repo.nodes, 4)
}

func TestAddNodeGivesUpUnderPersistentContention(t *testing.T) {
	repo := newMemoryRepo()
	repo.put(Node{ID: 1, Name: "a", DisplayOrder: 1, Kind: KindCustom})
	next := int64(100)
	repo.beforeCommit = func(m *memoryRepo) {
		next++
		order := 0
		for _, n := range m.nodes {
			order = max(order, n.DisplayOrder)
		}
		m.put(Node{ID: next, Name: "other", DisplayOrder: order + 1, Kind: KindCustom})
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.AddNode(context.Background(), NodeInput{Name: "c"})
	assert.ErrorIs(t, err, ErrOrderContention)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.False(t, hasDuplicateOrder(repo.nodes))
}
