// Package navigation composes the per-request menu from the static tree and
// the live dynamic sources.
package navigation

import "context"

// Node is a presentation entry. Group nodes carry Children and no URL.
type Node struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// Provider yields one ordered section of the menu.
type Provider interface {
	Name() string
	Nodes(ctx context.Context) ([]Node, error)
}

// Section is the output of one provider.
type Section struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// Menu is the composed navigation for one user. Sections keep provider order.
type Menu struct {
	Username string    `json:"username"`
	Sections []Section `json:"sections"`
}

// Section returns the nodes produced by the named provider.
func (m Menu) Section(name string) []Node {
	for _, s := range m.Sections {
		if s.Name == name {
			return s.Nodes
		}
	}
	return nil
}
