package navigation

import (
	"context"
	"strconv"

	"github.com/staffdesk/staffdesk/internal/dynamic"
	"github.com/staffdesk/staffdesk/internal/fiscal"
	"github.com/staffdesk/staffdesk/internal/menu"
)

// Provider names as they appear in Menu.Sections.
const (
	SectionStatic     = "static"
	SectionActivities = "activities"
	SectionEntities   = "entities"
	SectionPages      = "pages"
)

// TreeSource supplies the visible static tree.
type TreeSource interface {
	VisibleTree(ctx context.Context) ([]menu.Node, error)
}

// ActivitySource supplies the active activities of the current fiscal year.
type ActivitySource interface {
	CurrentActivities(ctx context.Context) ([]fiscal.Activity, error)
}

// DefinitionSource supplies dynamic entity and page definitions.
type DefinitionSource interface {
	ListEntities(ctx context.Context, activeOnly bool) ([]dynamic.Entity, error)
	ListPages(ctx context.Context, activeOnly bool) ([]dynamic.Page, error)
}

// StaticProvider exposes the editable tree, hidden branches removed.
type StaticProvider struct {
	Source TreeSource
}

func (StaticProvider) Name() string { return SectionStatic }

func (p StaticProvider) Nodes(ctx context.Context) ([]Node, error) {
	tree, err := p.Source.VisibleTree(ctx)
	if err != nil {
		return nil, err
	}
	return convertTree(tree), nil
}

func convertTree(in []menu.Node) []Node {
	if len(in) == 0 {
		return nil
	}
	out := make([]Node, 0, len(in))
	for _, n := range in {
		out = append(out, Node{Name: n.Name, URL: n.URL, Icon: n.Icon, Children: convertTree(n.Children)})
	}
	return out
}

// ActivityProvider lists the current year's activities in activity-type order.
type ActivityProvider struct {
	Source ActivitySource
}

func (ActivityProvider) Name() string { return SectionActivities }

func (p ActivityProvider) Nodes(ctx context.Context) ([]Node, error) {
	acts, err := p.Source.CurrentActivities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(acts))
	for _, a := range acts {
		out = append(out, Node{
			Name: a.ActivityTypeName,
			URL:  "/fiscal-years/activities/" + strconv.FormatInt(a.ID, 10) + "/clients",
		})
	}
	return out, nil
}

// EntityProvider lists active dynamic entities in display order.
type EntityProvider struct {
	Source DefinitionSource
}

func (EntityProvider) Name() string { return SectionEntities }

func (p EntityProvider) Nodes(ctx context.Context) ([]Node, error) {
	entities, err := p.Source.ListEntities(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(entities))
	for _, e := range entities {
		out = append(out, Node{Name: e.Name, URL: e.URL(), Icon: e.Icon})
	}
	return out, nil
}

// PageProvider lists active dynamic pages as one group node per category.
// The source orders by category then display order, so groups follow
// category order and pages keep their display order inside a group.
type PageProvider struct {
	Source DefinitionSource
}

func (PageProvider) Name() string { return SectionPages }

func (p PageProvider) Nodes(ctx context.Context) ([]Node, error) {
	pages, err := p.Source.ListPages(ctx, true)
	if err != nil {
		return nil, err
	}
	var groups []Node
	index := make(map[string]int)
	for _, pg := range pages {
		i, ok := index[pg.Category]
		if !ok {
			i = len(groups)
			index[pg.Category] = i
			groups = append(groups, Node{Name: pg.Category})
		}
		groups[i].Children = append(groups[i].Children, Node{Name: pg.Title, URL: pg.URL(), Icon: pg.Icon})
	}
	return groups, nil
}

// DefaultProviders returns the providers in menu order.
func DefaultProviders(tree TreeSource, activities ActivitySource, definitions DefinitionSource) []Provider {
	return []Provider{
		StaticProvider{Source: tree},
		ActivityProvider{Source: activities},
		EntityProvider{Source: definitions},
		PageProvider{Source: definitions},
	}
}
