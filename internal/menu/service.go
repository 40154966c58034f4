package menu

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// Service edits the static navigation tree.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Tree returns the whole tree, every sibling group in display order.
func (s *Service) Tree(ctx context.Context) ([]Node, error) {
	return s.tree(ctx, false)
}

// VisibleTree returns the tree without hidden nodes and their descendants.
func (s *Service) VisibleTree(ctx context.Context) ([]Node, error) {
	return s.tree(ctx, true)
}

func (s *Service) tree(ctx context.Context, visibleOnly bool) ([]Node, error) {
	flat, err := s.repo.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(flat, visibleOnly), nil
}

// Get fetches one node without children.
func (s *Service) Get(ctx context.Context, id int64) (Node, error) {
	return s.repo.GetNode(ctx, id)
}

// AddNode appends a custom node after its last sibling (order max+1, or 1 in
// an empty group).
func (s *Service) AddNode(ctx context.Context, input NodeInput) (Node, error) {
	var created Node
	err := s.withOrderRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			if _, err := tx.GetNode(ctx, *input.ParentID); err != nil {
				return err
			}
		}
		max, err := tx.MaxSiblingOrder(ctx, input.ParentID)
		if err != nil {
			return err
		}
		created, err = tx.InsertNode(ctx, Node{
			ParentID:     input.ParentID,
			Name:         strings.TrimSpace(input.Name),
			URL:          strings.TrimSpace(input.URL),
			Icon:         strings.TrimSpace(input.Icon),
			IsVisible:    input.IsVisible,
			DisplayOrder: max + 1,
			Kind:         KindCustom,
		})
		return err
	})
	return created, err
}

// EditNode changes presentation fields only; parent, order and kind stay.
func (s *Service) EditNode(ctx context.Context, id int64, input EditInput) (Node, error) {
	var updated Node
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.GetNode(ctx, id)
		if err != nil {
			return err
		}
		n.Name = strings.TrimSpace(input.Name)
		n.URL = strings.TrimSpace(input.URL)
		n.Icon = strings.TrimSpace(input.Icon)
		n.IsVisible = input.IsVisible
		updated, err = tx.UpdateNode(ctx, n)
		return err
	})
	return updated, err
}

// ToggleVisibility flips the visibility flag.
func (s *Service) ToggleVisibility(ctx context.Context, id int64) (Node, error) {
	var updated Node
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.GetNode(ctx, id)
		if err != nil {
			return err
		}
		n.IsVisible = !n.IsVisible
		updated, err = tx.UpdateNode(ctx, n)
		return err
	})
	return updated, err
}

// DeleteNode removes a custom node and its whole subtree, returning the number
// of nodes removed. System nodes, and subtrees holding one, are refused.
func (s *Service) DeleteNode(ctx context.Context, actor string, id int64) (int, error) {
	var removed int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		root, err := tx.GetNode(ctx, id)
		if err != nil {
			return err
		}
		subtree := []Node{root}
		for i := 0; i < len(subtree); i++ {
			n := subtree[i]
			if n.Kind == KindSystem {
				if n.ID == root.ID {
					return shared.NewPolicyError("delete menu node", "system nodes cannot be deleted")
				}
				return shared.NewPolicyError("delete menu node", "subtree contains system node "+strconv.FormatInt(n.ID, 10))
			}
			kids, err := tx.Children(ctx, n.ID)
			if err != nil {
				return err
			}
			subtree = append(subtree, kids...)
		}
		// Breadth-first order reversed deletes leaves before their parents.
		for i := len(subtree) - 1; i >= 0; i-- {
			if err := tx.DeleteNode(ctx, subtree[i].ID); err != nil {
				return err
			}
		}
		removed = len(subtree)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "menu_node.delete",
		Entity:   "menu_node",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"removed": removed},
	}); err != nil {
		s.logger.Warn("menu audit", slog.Any("error", err))
	}
	return removed, nil
}

// MoveUp swaps the node's order with its preceding sibling; no-op at the top.
func (s *Service) MoveUp(ctx context.Context, id int64) error {
	return s.move(ctx, id, -1)
}

// MoveDown swaps the node's order with its following sibling; no-op at the bottom.
func (s *Service) MoveDown(ctx context.Context, id int64) error {
	return s.move(ctx, id, 1)
}

func (s *Service) move(ctx context.Context, id int64, step int) error {
	return s.withOrderRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.GetNode(ctx, id)
		if err != nil {
			return err
		}
		siblings, err := tx.Siblings(ctx, n.ParentID)
		if err != nil {
			return err
		}
		sortSiblings(siblings)
		pos := -1
		for i, sib := range siblings {
			if sib.ID == id {
				pos = i
				break
			}
		}
		other := pos + step
		if pos < 0 || other < 0 || other >= len(siblings) {
			return nil
		}
		a, b := siblings[pos], siblings[other]
		if err := tx.SetOrder(ctx, a.ID, b.DisplayOrder); err != nil {
			return err
		}
		return tx.SetOrder(ctx, b.ID, a.DisplayOrder)
	})
}

const orderAttempts = 3

// withOrderRetry reruns fn in a fresh transaction when a concurrent writer
// took the same sibling order first.
func (s *Service) withOrderRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 1; attempt <= orderAttempts; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if !errors.Is(err, ErrOrderContention) {
			return err
		}
		s.logger.Debug("menu order contention", slog.Int("attempt", attempt))
	}
	return err
}
