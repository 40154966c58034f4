package rbac

import "time"

// Action names a finer-grained right on a page.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// Page is a protected page descriptor from the permission catalog.
type Page struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Icon         string    `json:"icon"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PageInput carries the editable fields of a page descriptor.
type PageInput struct {
	URL          string `json:"url" validate:"required,max=200"`
	Name         string `json:"name" validate:"required,max=120"`
	Icon         string `json:"icon" validate:"max=60"`
	DisplayOrder int    `json:"display_order"`
}

// Rights are the four independent capabilities a user may hold on a page.
type Rights struct {
	View   bool `json:"view"`
	Edit   bool `json:"edit"`
	Create bool `json:"create"`
	Delete bool `json:"delete"`
}

// IsZero reports whether no right is granted; such rows are never stored.
func (r Rights) IsZero() bool {
	return !r.View && !r.Edit && !r.Create && !r.Delete
}

// Allows reports whether the rights grant the action.
func (r Rights) Allows(action Action) bool {
	switch action {
	case ActionView:
		return r.View
	case ActionEdit:
		return r.Edit
	case ActionCreate:
		return r.Create
	case ActionDelete:
		return r.Delete
	default:
		return false
	}
}

// Assignment is one row of the capability matrix.
type Assignment struct {
	UserID int64  `json:"user_id"`
	PageID int64  `json:"page_id"`
	Rights Rights `json:"rights"`
}

// UserRight is a stored assignment joined with its page.
type UserRight struct {
	Page   Page   `json:"page"`
	Rights Rights `json:"rights"`
}
