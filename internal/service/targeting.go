package service

import (
	"context"
	"fmt"

	"dispatch/internal/domain"
)

// ScopeQuerier lists recipients inside a geo scope.
type ScopeQuerier interface {
	ListIDsByScope(ctx context.Context, cityID, countryID *uint) ([]uint, error)
}

// Target selects broadcast recipients. A non-empty UserIDs wins over the scope.
type Target struct {
	UserIDs   []uint
	CityID    *uint
	CountryID *uint
}

type TargetingResolver struct {
	scope ScopeQuerier
}

func NewTargetingResolver(scope ScopeQuerier) *TargetingResolver {
	return &TargetingResolver{scope: scope}
}

// Resolve expands t into recipient ids. Explicit ids come back deduplicated in
// first-seen order; otherwise one scope query runs.
func (r *TargetingResolver) Resolve(ctx context.Context, t Target) ([]uint, error) {
	if ids := dedupe(t.UserIDs); len(ids) > 0 {
		return ids, nil
	}
	if t.CityID == nil && t.CountryID == nil {
		return nil, fmt.Errorf("%w: user_ids, city_id or country_id required", domain.ErrValidation)
	}
	ids, err := r.scope.ListIDsByScope(ctx, t.CityID, t.CountryID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoTargets
	}
	return ids, nil
}

func dedupe(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
