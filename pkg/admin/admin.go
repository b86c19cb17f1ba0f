// Package admin implements the administrative operations on online time:
// looking up an identity's total and setting, modifying or resetting it.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/identity"
	"github.com/0xmhha/onlinetime/pkg/logger"
)

// Totals reads and adjusts live totals.
type Totals interface {
	Total(ctx context.Context, id uuid.UUID) (int64, bool, error)
	Add(ctx context.Context, id uuid.UUID, delta int64) error
}

// Names resolves between names and identities.
type Names interface {
	GetID(ctx context.Context, name string) (uuid.UUID, bool, error)
	GetName(ctx context.Context, id uuid.UUID) (string, bool, error)
}

// DurationParser converts duration text into seconds.
type DurationParser interface {
	Parse(s string) (int64, bool)
}

// Service runs administrative commands.
type Service struct {
	totals Totals
	names  Names
	parser DurationParser
	logger logger.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(totals Totals, names Names, parser DurationParser, log logger.Logger) *Service {
	if log == nil {
		log = logger.Noop()
	}
	return &Service{totals: totals, names: names, parser: parser, logger: log}
}

// Resolve accepts an identity id (dashed or not) or a name. For an id the
// current name is looked up and left empty if none is known.
func (s *Service) Resolve(ctx context.Context, ref string) (identity.Identity, error) {
	ref = strings.TrimSpace(ref)
	if identity.IsID(ref) {
		id, err := identity.Parse(ref)
		if err != nil {
			return identity.Identity{}, err
		}
		name, _, err := s.names.GetName(ctx, id)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("failed to look up name of %s: %w", id, err)
		}
		return identity.New(id, name), nil
	}

	id, ok, err := s.names.GetID(ctx, ref)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to look up %q: %w", ref, err)
	}
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, ref)
	}
	return identity.New(id, ref), nil
}

// Show returns the live total of ref.
func (s *Service) Show(ctx context.Context, ref string) (identity.Identity, int64, error) {
	ident, err := s.Resolve(ctx, ref)
	if err != nil {
		return identity.Identity{}, 0, err
	}
	total, err := s.current(ctx, ident)
	return ident, total, err
}

// Set makes ref's total equal the parsed duration and returns that target.
func (s *Service) Set(ctx context.Context, ref, duration string) (identity.Identity, int64, error) {
	target, err := s.parse(duration)
	if err != nil {
		return identity.Identity{}, 0, err
	}
	ident, err := s.Resolve(ctx, ref)
	if err != nil {
		return identity.Identity{}, 0, err
	}
	if target < 0 {
		return ident, 0, fmt.Errorf("%w: %d", ErrNegativeTime, target)
	}

	total, err := s.current(ctx, ident)
	if err != nil {
		return ident, 0, err
	}
	if total != target {
		if err := s.totals.Add(ctx, ident.ID, target-total); err != nil {
			return ident, 0, fmt.Errorf("failed to set online time of %s: %w", ident, err)
		}
	}
	s.logger.Info("online time set", "id", ident.ID, "seconds", target)
	return ident, target, nil
}

// Modify adds the parsed duration, which may be negative, to ref's total and
// returns the applied delta.
func (s *Service) Modify(ctx context.Context, ref, duration string) (identity.Identity, int64, error) {
	delta, err := s.parse(duration)
	if err != nil {
		return identity.Identity{}, 0, err
	}
	ident, err := s.Resolve(ctx, ref)
	if err != nil {
		return identity.Identity{}, 0, err
	}

	total, err := s.current(ctx, ident)
	if err != nil {
		return ident, 0, err
	}
	if total+delta < 0 {
		return ident, 0, fmt.Errorf("%w: %d%+d", ErrNegativeTime, total, delta)
	}
	if delta != 0 {
		if err := s.totals.Add(ctx, ident.ID, delta); err != nil {
			return ident, 0, fmt.Errorf("failed to modify online time of %s: %w", ident, err)
		}
	}
	s.logger.Info("online time modified", "id", ident.ID, "delta", delta)
	return ident, delta, nil
}

// Reset brings ref's total to zero and returns the total it had.
func (s *Service) Reset(ctx context.Context, ref string) (identity.Identity, int64, error) {
	ident, err := s.Resolve(ctx, ref)
	if err != nil {
		return identity.Identity{}, 0, err
	}
	total, err := s.current(ctx, ident)
	if err != nil {
		return ident, 0, err
	}
	if total != 0 {
		if err := s.totals.Add(ctx, ident.ID, -total); err != nil {
			return ident, 0, fmt.Errorf("failed to reset online time of %s: %w", ident, err)
		}
	}
	s.logger.Info("online time reset", "id", ident.ID, "previous", total)
	return ident, total, nil
}

func (s *Service) current(ctx context.Context, ident identity.Identity) (int64, error) {
	total, found, err := s.totals.Total(ctx, ident.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load online time of %s: %w", ident, err)
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, ident)
	}
	return total, nil
}

func (s *Service) parse(text string) (int64, error) {
	seconds, ok := s.parser.Parse(text)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	return seconds, nil
}
