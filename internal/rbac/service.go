package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// DecisionObserver receives every access decision, e.g. for metrics.
type DecisionObserver interface {
	ObserveAccess(pageID string, allowed bool)
}

// Service owns the permission catalog, the capability matrix and the access decision.
type Service struct {
	repo     Repository
	audit    shared.AuditRecorder
	logger   *slog.Logger
	observer DecisionObserver
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

// SetObserver attaches a decision observer.
func (s *Service) SetObserver(o DecisionObserver) {
	s.observer = o
}

// CanAccess reports whether username may view pageID. The reserved
// administrator is allowed without consulting the matrix; anonymous callers
// and unknown pages are denied.
func (s *Service) CanAccess(ctx context.Context, username, pageID string) (bool, error) {
	return s.Allowed(ctx, username, pageID, ActionView)
}

// Allowed reports whether username holds the given right on pageID.
func (s *Service) Allowed(ctx context.Context, username, pageID string, action Action) (bool, error) {
	allowed, err := s.decide(ctx, username, pageID, action)
	if err != nil {
		return false, err
	}
	if s.observer != nil {
		s.observer.ObserveAccess(pageID, allowed)
	}
	return allowed, nil
}

func (s *Service) decide(ctx context.Context, username, pageID string, action Action) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	if shared.IsAdministrator(username) {
		return true, nil
	}
	pageURL := shared.NormalizePageURL(pageID)
	if pageURL == "" {
		return false, nil
	}
	rights, found, err := s.repo.RightsFor(ctx, username, pageURL)
	if err != nil {
		return false, fmt.Errorf("rbac: rights lookup: %w", err)
	}
	if !found {
		return false, nil
	}
	return rights.Allows(action), nil
}

// GetRights returns the stored rights, all false when no assignment exists.
func (s *Service) GetRights(ctx context.Context, userID, pageID int64) (Rights, error) {
	rights, _, err := s.repo.GetRights(ctx, userID, pageID)
	if err != nil {
		return Rights{}, err
	}
	return rights, nil
}

// UserRights lists the stored assignments for a user.
func (s *Service) UserRights(ctx context.Context, userID int64) ([]UserRight, error) {
	return s.repo.UserRights(ctx, userID)
}

// SetRights stores rights for one (user, page) pair, removing the row when
// every right is false.
func (s *Service) SetRights(ctx context.Context, actor string, userID, pageID int64, rights Rights) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureEditableUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.GetPage(ctx, pageID); err != nil {
			return err
		}
		if rights.IsZero() {
			return tx.DeleteRights(ctx, userID, pageID)
		}
		return tx.UpsertRights(ctx, userID, pageID, rights)
	})
	if err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "rights.set",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"page_id": pageID, "rights": rights},
	})
	return nil
}

// ReplaceUserRights clears every assignment of the user and writes the given
// set in one transaction. A page listed twice keeps its last rights; all-false
// rows are dropped.
func (s *Service) ReplaceUserRights(ctx context.Context, actor string, userID int64, assignments []Assignment) error {
	merged := mergeAssignments(assignments)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureEditableUser(ctx, tx, userID); err != nil {
			return err
		}
		for _, a := range merged {
			if _, err := tx.GetPage(ctx, a.PageID); err != nil {
				return err
			}
		}
		if err := tx.ClearUserRights(ctx, userID); err != nil {
			return err
		}
		for _, a := range merged {
			if a.Rights.IsZero() {
				continue
			}
			if err := tx.UpsertRights(ctx, userID, a.PageID, a.Rights); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "rights.replace",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"pages": len(merged)},
	})
	return nil
}

// ListPages returns the permission catalog.
func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	return s.repo.ListPages(ctx)
}

// GetPage fetches a page descriptor.
func (s *Service) GetPage(ctx context.Context, id int64) (Page, error) {
	return s.repo.GetPage(ctx, id)
}

// CreatePage adds a page descriptor; URLs are unique case-insensitively.
func (s *Service) CreatePage(ctx context.Context, input PageInput) (Page, error) {
	input = normalizePageInput(input)
	if input.URL == "" || input.Name == "" {
		return Page{}, shared.NewFieldError("url", "url and name are required")
	}
	var page Page
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, exists, err := tx.FindPageByURL(ctx, input.URL); err != nil {
			return err
		} else if exists {
			return shared.NewFieldError("url", "page URL already exists")
		}
		created, err := tx.InsertPage(ctx, input)
		page = created
		return err
	})
	return page, err
}

// UpdatePage edits a page descriptor.
func (s *Service) UpdatePage(ctx context.Context, id int64, input PageInput) (Page, error) {
	input = normalizePageInput(input)
	if input.URL == "" || input.Name == "" {
		return Page{}, shared.NewFieldError("url", "url and name are required")
	}
	var page Page
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetPage(ctx, id); err != nil {
			return err
		}
		if other, exists, err := tx.FindPageByURL(ctx, input.URL); err != nil {
			return err
		} else if exists && other.ID != id {
			return shared.NewFieldError("url", "page URL already exists")
		}
		updated, err := tx.UpdatePage(ctx, id, input)
		page = updated
		return err
	})
	return page, err
}

// DeletePage removes a page descriptor together with its assignments.
func (s *Service) DeletePage(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeletePage(ctx, id)
	})
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("rbac audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func ensureEditableUser(ctx context.Context, tx TxRepository, userID int64) error {
	username, err := tx.GetUsername(ctx, userID)
	if err != nil {
		return err
	}
	if shared.IsAdministrator(username) {
		return shared.NewPolicyError("edit rights", "the administrator always has full access")
	}
	return nil
}

func mergeAssignments(in []Assignment) []Assignment {
	index := make(map[int64]int, len(in))
	out := make([]Assignment, 0, len(in))
	for _, a := range in {
		if i, ok := index[a.PageID]; ok {
			out[i].Rights = a.Rights
			continue
		}
		index[a.PageID] = len(out)
		out = append(out, a)
	}
	return out
}

func normalizePageInput(in PageInput) PageInput {
	in.URL = shared.NormalizePageURL(in.URL)
	in.Name = strings.TrimSpace(in.Name)
	in.Icon = strings.TrimSpace(in.Icon)
	return in
}
