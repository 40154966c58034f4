package fiscal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// ErrNoPriorYear is returned by CopyForward when no earlier fiscal year exists.
var ErrNoPriorYear = fmt.Errorf("fiscal: no prior fiscal year to copy from: %w", shared.ErrPrecondition)

// Service maintains fiscal years, the single current year and year-scoped activities.
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

// List returns every fiscal year, newest first.
func (s *Service) List(ctx context.Context) ([]FiscalYear, error) {
	return s.repo.ListYears(ctx)
}

// Get fetches a fiscal year.
func (s *Service) Get(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.GetYear(ctx, id)
}

// Current returns the current fiscal year; ok is false when none is flagged.
func (s *Service) Current(ctx context.Context) (FiscalYear, bool, error) {
	return s.repo.CurrentYear(ctx)
}

// Create adds a fiscal year. When MakeCurrent is set, every other year loses
// the flag in the same transaction.
func (s *Service) Create(ctx context.Context, actor string, input YearInput) (FiscalYear, error) {
	var created FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, exists, err := tx.FindYear(ctx, input.Year); err != nil {
			return err
		} else if exists {
			return shared.NewFieldError("year", "fiscal year already exists")
		}
		if input.MakeCurrent {
			if err := tx.ClearCurrent(ctx, 0); err != nil {
				return err
			}
		}
		fy, err := tx.InsertYear(ctx, FiscalYear{Year: input.Year, IsActive: input.IsActive, IsCurrent: input.MakeCurrent})
		created = fy
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	if created.IsCurrent {
		s.record(ctx, actor, "fiscal_year.set_current", created.ID, map[string]any{"year": created.Year})
	}
	return created, nil
}

// Update edits a fiscal year. MakeCurrent promotes it atomically; a false
// MakeCurrent keeps the existing flag.
func (s *Service) Update(ctx context.Context, actor string, id int64, input YearInput) (FiscalYear, error) {
	var (
		updated  FiscalYear
		promoted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetYear(ctx, id)
		if err != nil {
			return err
		}
		if other, exists, err := tx.FindYear(ctx, input.Year); err != nil {
			return err
		} else if exists && other.ID != id {
			return shared.NewFieldError("year", "fiscal year already exists")
		}
		if input.MakeCurrent && !fy.IsCurrent {
			if err := tx.ClearCurrent(ctx, id); err != nil {
				return err
			}
			fy.IsCurrent = true
			promoted = true
		}
		fy.Year = input.Year
		fy.IsActive = input.IsActive
		updated, err = tx.UpdateYear(ctx, fy)
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	if promoted {
		s.record(ctx, actor, "fiscal_year.set_current", updated.ID, map[string]any{"year": updated.Year})
	}
	return updated, nil
}

// SetCurrent flags id as the only current fiscal year.
func (s *Service) SetCurrent(ctx context.Context, actor string, id int64) (FiscalYear, error) {
	var current FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetYear(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.ClearCurrent(ctx, id); err != nil {
			return err
		}
		if fy.IsCurrent {
			current = fy
			return nil
		}
		fy.IsCurrent = true
		current, err = tx.UpdateYear(ctx, fy)
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actor, "fiscal_year.set_current", current.ID, map[string]any{"year": current.Year})
	return current, nil
}

// SetCurrentByYear resolves the calendar year and flags it current.
func (s *Service) SetCurrentByYear(ctx context.Context, actor string, year int) (FiscalYear, error) {
	id, err := s.ResolveYear(ctx, year)
	if err != nil {
		return FiscalYear{}, err
	}
	return s.SetCurrent(ctx, actor, id)
}

// Delete removes a fiscal year together with its activities and client links.
func (s *Service) Delete(ctx context.Context, actor string, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteYear(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "fiscal_year.delete", id, nil)
	return nil
}

// ListActivities lists a year's activities ordered by activity-type display order.
func (s *Service) ListActivities(ctx context.Context, yearID int64, activeOnly bool) ([]Activity, error) {
	if _, err := s.repo.GetYear(ctx, yearID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, yearID, activeOnly)
}

// CurrentActivities lists the active activities of the current year, or nil
// when no year is current.
func (s *Service) CurrentActivities(ctx context.Context) ([]Activity, error) {
	fy, ok, err := s.repo.CurrentYear(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return s.repo.ListActivities(ctx, fy.ID, true)
}

// CreateActivity instantiates an activity type for a fiscal year; each type
// appears at most once per year.
func (s *Service) CreateActivity(ctx context.Context, yearID int64, input ActivityInput) (Activity, error) {
	var created Activity
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetYear(ctx, yearID); err != nil {
			return err
		}
		if ok, err := tx.ActivityTypeExists(ctx, input.ActivityTypeID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("activity type %d: %w", input.ActivityTypeID, shared.ErrNotFound)
		}
		if exists, err := tx.ActivityExists(ctx, input.ActivityTypeID, yearID); err != nil {
			return err
		} else if exists {
			return shared.NewFieldError("activity_type_id", "activity already exists for this fiscal year")
		}
		a, err := tx.InsertActivity(ctx, Activity{
			FiscalYearID:   yearID,
			ActivityTypeID: input.ActivityTypeID,
			IsActive:       input.IsActive,
			DueDate:        input.DueDate,
		})
		created = a
		return err
	})
	return created, err
}

// ListClientLinks lists the clients linked to an activity.
func (s *Service) ListClientLinks(ctx context.Context, activityID int64) ([]ClientLink, error) {
	return s.repo.ListClientLinks(ctx, activityID)
}

// LinkClient attaches a client to an activity in the todo state.
func (s *Service) LinkClient(ctx context.Context, activityID, clientID int64) (ClientLink, error) {
	var link ClientLink
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetActivity(ctx, activityID); err != nil {
			return err
		}
		if ok, err := tx.ClientExists(ctx, clientID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("client %d: %w", clientID, shared.ErrNotFound)
		}
		l, err := tx.InsertClientLink(ctx, ClientLink{ActivityID: activityID, ClientID: clientID, Status: LinkTodo})
		link = l
		return err
	})
	return link, err
}

// UpdateLinkStatus moves a client link to another status.
func (s *Service) UpdateLinkStatus(ctx context.Context, linkID int64, status LinkStatus) (ClientLink, error) {
	if !status.Valid() {
		return ClientLink{}, shared.NewFieldError("status", "unknown status")
	}
	var link ClientLink
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := tx.UpdateLinkStatus(ctx, linkID, status)
		link = l
		return err
	})
	return link, err
}

// CopyForward copies the activities of the most recent earlier fiscal year
// into destYearID. Activity types already present in the destination are
// skipped, so repeated runs only fill gaps. Due dates move forward one year;
// copied client links always start as todo.
func (s *Service) CopyForward(ctx context.Context, actor string, destYearID int64, includeClientLinks bool) (CopyResult, error) {
	var result CopyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dest, err := tx.GetYear(ctx, destYearID)
		if err != nil {
			return err
		}
		source, ok, err := tx.PriorYear(ctx, dest.Year)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoPriorYear
		}
		result.SourceYear = source.Year

		activities, err := tx.ListActivities(ctx, source.ID, false)
		if err != nil {
			return err
		}
		for _, src := range activities {
			exists, err := tx.ActivityExists(ctx, src.ActivityTypeID, dest.ID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			copied, err := tx.InsertActivity(ctx, Activity{
				FiscalYearID:   dest.ID,
				ActivityTypeID: src.ActivityTypeID,
				IsActive:       src.IsActive,
				DueDate:        advanceDueDate(src.DueDate),
			})
			if err != nil {
				return err
			}
			result.Activities++
			if !includeClientLinks {
				continue
			}
			links, err := tx.ListClientLinks(ctx, src.ID)
			if err != nil {
				return err
			}
			for _, link := range links {
				if _, err := tx.InsertClientLink(ctx, ClientLink{ActivityID: copied.ID, ClientID: link.ClientID, Status: LinkTodo}); err != nil {
					return err
				}
				result.ClientLinks++
			}
		}
		return nil
	})
	if err != nil {
		return CopyResult{}, err
	}
	s.record(ctx, actor, "fiscal_year.copy_forward", destYearID, map[string]any{
		"source_year":  result.SourceYear,
		"activities":   result.Activities,
		"client_links": result.ClientLinks,
	})
	s.logger.Info("copy forward",
		slog.Int64("fiscal_year_id", destYearID),
		slog.Int("source_year", result.SourceYear),
		slog.Int("activities", result.Activities),
		slog.Int("client_links", result.ClientLinks))
	return result, nil
}

// CopyForwardByYear resolves the calendar year and runs CopyForward.
func (s *Service) CopyForwardByYear(ctx context.Context, actor string, year int, includeClientLinks bool) (CopyResult, error) {
	id, err := s.ResolveYear(ctx, year)
	if err != nil {
		return CopyResult{}, err
	}
	return s.CopyForward(ctx, actor, id, includeClientLinks)
}

// ResolveYear maps a calendar year to its fiscal-year ID.
func (s *Service) ResolveYear(ctx context.Context, year int) (int64, error) {
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, ok, err := tx.FindYear(ctx, year)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("fiscal year %d: %w", year, shared.ErrNotFound)
		}
		id = fy.ID
		return nil
	})
	return id, err
}

func (s *Service) record(ctx context.Context, actor, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "fiscal_year",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("fiscal audit", slog.String("action", action), slog.Any("error", err))
	}
}
