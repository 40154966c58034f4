package dynamic

// Entity is a user-defined record type that gets its own navigation entry.
type Entity struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}

// URL is the route the entity is served under.
func (e Entity) URL() string {
	return "/entities/" + e.Slug
}

// Page is a user-defined content page grouped by category in navigation.
type Page struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Category     string `json:"category"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}

// URL is the route the page is served under.
func (p Page) URL() string {
	return "/pages/" + p.Slug
}

// EntityInput carries the fields of a new entity definition.
type EntityInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Slug         string `json:"slug" validate:"required,max=64"`
	Icon         string `json:"icon" validate:"max=64"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}

// PageInput carries the fields of a new page definition.
type PageInput struct {
	Title        string `json:"title" validate:"required,max=100"`
	Slug         string `json:"slug" validate:"required,max=64"`
	Category     string `json:"category" validate:"max=64"`
	Icon         string `json:"icon" validate:"max=64"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}
