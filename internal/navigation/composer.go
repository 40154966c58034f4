package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// Gate answers the blanket menu access question.
type Gate interface {
	CanAccess(ctx context.Context, username, pageID string) (bool, error)
}

// BuildObserver records menu build latency.
type BuildObserver interface {
	ObserveMenuBuild(outcome string, d time.Duration)
}

// Composer merges provider output into a Menu.
type Composer struct {
	gate      Gate
	providers []Provider
	logger    *slog.Logger
	observer  BuildObserver
	group     singleflight.Group
}

// NewComposer constructs a Composer. Sections appear in providers order.
func NewComposer(gate Gate, providers []Provider, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{gate: gate, providers: providers, logger: logger}
}

// SetObserver attaches a build observer.
func (c *Composer) SetObserver(o BuildObserver) {
	c.observer = o
}

// BuildMenu returns the menu for username, or ErrAccessDenied when the user
// may not view the menu. Concurrent builds for the same user share one run.
func (c *Composer) BuildMenu(ctx context.Context, username string) (Menu, error) {
	start := time.Now()
	m, err := c.buildMenu(ctx, username)
	if c.observer != nil {
		outcome := "ok"
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrAccessDenied):
			outcome = "denied"
		default:
			outcome = "error"
		}
		c.observer.ObserveMenuBuild(outcome, time.Since(start))
	}
	return m, err
}

func (c *Composer) buildMenu(ctx context.Context, username string) (Menu, error) {
	allowed, err := c.gate.CanAccess(ctx, username, shared.PageMenu)
	if err != nil {
		return Menu{}, fmt.Errorf("navigation: menu gate: %w", err)
	}
	if !allowed {
		return Menu{}, shared.ErrAccessDenied
	}

	key := shared.FoldUsername(username)
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		m, err := c.compose(context.WithoutCancel(ctx))
		return m, err
	})
	select {
	case <-ctx.Done():
		return Menu{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Menu{}, res.Err
		}
		m := res.Val.(Menu)
		m.Username = username
		return m, nil
	}
}

func (c *Composer) compose(ctx context.Context) (Menu, error) {
	sections := make([]Section, len(c.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		g.Go(func() error {
			nodes, err := p.Nodes(gctx)
			if err != nil {
				c.logger.Error("navigation provider failed", slog.String("provider", p.Name()), slog.Any("error", err))
				return fmt.Errorf("navigation: provider %s: %w", p.Name(), err)
			}
			if nodes == nil {
				nodes = []Node{}
			}
			sections[i] = Section{Name: p.Name(), Nodes: nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Menu{}, err
	}
	return Menu{Sections: sections}, nil
}
