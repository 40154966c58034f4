package dynamic

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdesk/staffdesk/internal/shared"
)

type memoryRepo struct {
	entities []Entity
	pages    []Page
	nextID   int64
}

func (m *memoryRepo) ListEntities(ctx context.Context, activeOnly bool) ([]Entity, error) {
	var out []Entity
	for _, e := range m.entities {
		if !activeOnly || e.IsActive {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memoryRepo) ListPages(ctx context.Context, activeOnly bool) ([]Page, error) {
	var out []Page
	for _, p := range m.pages {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (m *memoryRepo) InsertEntity(ctx context.Context, e Entity) (Entity, error) {
	for _, existing := range m.entities {
		if existing.Slug == e.Slug {
			return Entity{}, shared.NewFieldError("slug", "slug already in use")
		}
	}
	m.nextID++
	e.ID = m.nextID
	m.entities = append(m.entities, e)
	return e, nil
}

func (m *memoryRepo) InsertPage(ctx context.Context, p Page) (Page, error) {
	for _, existing := range m.pages {
		if existing.Slug == p.Slug {
			return Page{}, shared.NewFieldError("slug", "slug already in use")
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.pages = append(m.pages, p)
	return p, nil
}

func (m *memoryRepo) SetEntityActive(ctx context.Context, id int64, active bool) (Entity, error) {
	for i := range m.entities {
		if m.entities[i].ID == id {
			m.entities[i].IsActive = active
			return m.entities[i], nil
		}
	}
	return Entity{}, shared.ErrNotFound
}

func (m *memoryRepo) SetPageActive(ctx context.Context, id int64, active bool) (Page, error) {
	for i := range m.pages {
		if m.pages[i].ID == id {
			m.pages[i].IsActive = active
			return m.pages[i], nil
		}
	}
	return Page{}, shared.ErrNotFound
}

func TestCreateEntityNormalizesSlug(t *testing.T) {
	svc := NewService(&memoryRepo{})
	ctx := context.Background()

	e, err := svc.CreateEntity(ctx, EntityInput{Name: " Contracts ", Slug: " Contracts ", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "contracts", e.Slug)
	assert.Equal(t, "Contracts", e.Name)
	assert.Equal(t, "/entities/contracts", e.URL())

	_, err = svc.CreateEntity(ctx, EntityInput{Name: "Again", Slug: "CONTRACTS"})
	var fieldErr *shared.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "slug", fieldErr.Field)

	_, err = svc.CreateEntity(ctx, EntityInput{Name: "Bad", Slug: "has space"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestPagesOrderedByCategoryThenOrder(t *testing.T) {
	svc := NewService(&memoryRepo{})
	ctx := context.Background()
	for _, in := range []PageInput{
		{Title: "Tax calendar", Slug: "tax-calendar", Category: "Tax", DisplayOrder: 2, IsActive: true},
		{Title: "Onboarding", Slug: "onboarding", Category: "HR", DisplayOrder: 1, IsActive: true},
		{Title: "VAT guide", Slug: "vat-guide", Category: "Tax", DisplayOrder: 1, IsActive: true},
		{Title: "Old", Slug: "old", Category: "HR", DisplayOrder: 0, IsActive: false},
	} {
		_, err := svc.CreatePage(ctx, in)
		require.NoError(t, err)
	}

	active, err := svc.ListPages(ctx, true)
	require.NoError(t, err)
	var slugs []string
	for _, p := range active {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"onboarding", "vat-guide", "tax-calendar"}, slugs)

	all, err := svc.ListPages(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSetActive(t *testing.T) {
	svc := NewService(&memoryRepo{})
	ctx := context.Background()
	e, err := svc.CreateEntity(ctx, EntityInput{Name: "Leads", Slug: "leads", IsActive: true})
	require.NoError(t, err)

	off, err := svc.SetEntityActive(ctx, e.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	active, err := svc.ListEntities(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.SetPageActive(ctx, 404, true)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
