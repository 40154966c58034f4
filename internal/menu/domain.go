package menu

import (
	"fmt"
	"sort"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// ErrOrderContention reports that a concurrent change took the display
// order a transaction tried to commit in the same sibling group.
var ErrOrderContention = fmt.Errorf("menu: sibling order taken concurrently: %w", shared.ErrConflict)

// Kind separates protected seed nodes from user-created ones.
type Kind string

const (
	// KindSystem nodes cannot be deleted.
	KindSystem Kind = "system"
	KindCustom Kind = "custom"
)

// Node is one entry of the static navigation tree. DisplayOrder is scoped to
// the sibling group sharing ParentID.
type Node struct {
	ID           int64  `json:"id"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	Icon         string `json:"icon,omitempty"`
	IsVisible    bool   `json:"is_visible"`
	DisplayOrder int    `json:"display_order"`
	Kind         Kind   `json:"kind"`
	Children     []Node `json:"children,omitempty"`
}

// NodeInput carries the fields of a new custom node.
type NodeInput struct {
	ParentID  *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Name      string `json:"name" validate:"required,max=100"`
	URL       string `json:"url" validate:"max=255"`
	Icon      string `json:"icon" validate:"max=64"`
	IsVisible bool   `json:"is_visible"`
}

// EditInput carries the presentation fields editable on any node.
type EditInput struct {
	Name      string `json:"name" validate:"required,max=100"`
	URL       string `json:"url" validate:"max=255"`
	Icon      string `json:"icon" validate:"max=64"`
	IsVisible bool   `json:"is_visible"`
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortSiblings(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// BuildTree nests a flat node list by parent, ordering every sibling group by
// display order. With visibleOnly, hidden nodes are dropped together with
// their descendants. Nodes whose parent is missing from the list are dropped.
func BuildTree(flat []Node, visibleOnly bool) []Node {
	children := make(map[int64][]Node)
	var roots []Node
	for _, n := range flat {
		if visibleOnly && !n.IsVisible {
			continue
		}
		n.Children = nil
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		children[*n.ParentID] = append(children[*n.ParentID], n)
	}
	var attach func(nodes []Node) []Node
	attach = func(nodes []Node) []Node {
		sortSiblings(nodes)
		for i := range nodes {
			if kids, ok := children[nodes[i].ID]; ok {
				nodes[i].Children = attach(kids)
			}
		}
		return nodes
	}
	return attach(roots)
}
