package dynamic

import (
	"context"
	"regexp"
	"strings"

	"github.com/staffdesk/staffdesk/internal/shared"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service manages dynamic entity and page definitions.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListEntities returns entity definitions ordered by display order.
func (s *Service) ListEntities(ctx context.Context, activeOnly bool) ([]Entity, error) {
	return s.repo.ListEntities(ctx, activeOnly)
}

// ListPages returns page definitions ordered by category then display order.
func (s *Service) ListPages(ctx context.Context, activeOnly bool) ([]Page, error) {
	return s.repo.ListPages(ctx, activeOnly)
}

// CreateEntity registers an entity definition. Slugs are lower-cased.
func (s *Service) CreateEntity(ctx context.Context, input EntityInput) (Entity, error) {
	slug, err := normalizeSlug(input.Slug)
	if err != nil {
		return Entity{}, err
	}
	return s.repo.InsertEntity(ctx, Entity{
		Name:         strings.TrimSpace(input.Name),
		Slug:         slug,
		Icon:         strings.TrimSpace(input.Icon),
		DisplayOrder: input.DisplayOrder,
		IsActive:     input.IsActive,
	})
}

// CreatePage registers a page definition. Slugs are lower-cased.
func (s *Service) CreatePage(ctx context.Context, input PageInput) (Page, error) {
	slug, err := normalizeSlug(input.Slug)
	if err != nil {
		return Page{}, err
	}
	return s.repo.InsertPage(ctx, Page{
		Title:        strings.TrimSpace(input.Title),
		Slug:         slug,
		Category:     strings.TrimSpace(input.Category),
		Icon:         strings.TrimSpace(input.Icon),
		DisplayOrder: input.DisplayOrder,
		IsActive:     input.IsActive,
	})
}

// SetEntityActive enables or disables an entity definition.
func (s *Service) SetEntityActive(ctx context.Context, id int64, active bool) (Entity, error) {
	return s.repo.SetEntityActive(ctx, id, active)
}

// SetPageActive enables or disables a page definition.
func (s *Service) SetPageActive(ctx context.Context, id int64, active bool) (Page, error) {
	return s.repo.SetPageActive(ctx, id, active)
}

func normalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if !slugPattern.MatchString(slug) {
		return "", shared.NewFieldError("slug", "slug must be lowercase letters, digits and single dashes")
	}
	return slug, nil
}
