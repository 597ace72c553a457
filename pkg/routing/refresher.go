package routing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RuleSource supplies the access table.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]AccessRule, error)
}

// StaticRules is a RuleSource backed by a compiled-in table.
type StaticRules []AccessRule

func (s StaticRules) LoadRules(ctx context.Context) ([]AccessRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]AccessRule, len(s))
	copy(out, s)
	return out, nil
}

// Refresher loads rules from a source into a registry
type Refresher struct {
	registry *RouteRegistry
	source   RuleSource
	logger   *zap.Logger
}

// NewRefresher creates a new route refresher
func NewRefresher(registry *RouteRegistry, source RuleSource, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		registry: registry,
		source:   source,
		logger:   logger,
	}
}

// Refresh reloads all rules. The registry is left untouched when the source
// fails or any rule is invalid.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.logger.Info("Starting access rule refresh")

	rules, err := r.source.LoadRules(ctx)
	if err != nil {
		r.logger.Error("Failed to load access rules", zap.Error(err))
		return fmt.Errorf("failed to load rules: %w", err)
	}

	if len(rules) == 0 {
		r.logger.Warn("No access rules found")
		return errors.New("no access rules found")
	}

	if err := r.registry.Replace(rules); err != nil {
		r.logger.Error("Failed to install access rules", zap.Error(err))
		return fmt.Errorf("failed to install rules: %w", err)
	}

	r.logger.Info("Access rule refresh completed",
		zap.Int("total", len(rules)),
	)

	return nil
}
