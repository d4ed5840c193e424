package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LocationRegistry resolves the pool location and validates centers.
type LocationRegistry interface {
	// ResolvePool returns the pool location. A missing or misconfigured pool yields a
	// *ConfigurationError.
	ResolvePool(ctx context.Context) (*Location, error)
	// Center returns an active non-pool location. The pool yields *InvalidArgumentError.
	Center(ctx context.Context, id int) (*Location, error)
	ListCenters(ctx context.Context) ([]Location, error)
}

type locationRegistry struct {
	store    StockStore
	poolCode string
}

// NewLocationRegistry returns a registry that resolves the pool by poolCode.
func NewLocationRegistry(store StockStore, poolCode string) LocationRegistry {
	return &locationRegistry{store: store, poolCode: strings.TrimSpace(poolCode)}
}

func (r *locationRegistry) ResolvePool(ctx context.Context) (*Location, error) {
	if r.poolCode == "" {
		return nil, &ConfigurationError{Msg: "pool location code is empty"}
	}
	loc, err := r.store.FindLocationByCode(ctx, r.poolCode)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("pool not provisioned: no location %s; insert it with is_pool = true", r.poolCode)}
		}
		return nil, fmt.Errorf("failed to resolve pool location %s: %w", r.poolCode, err)
	}
	if !loc.IsPool {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("location %s is not flagged as the pool", r.poolCode)}
	}
	return loc, nil
}

func (r *locationRegistry) Center(ctx context.Context, id int) (*Location, error) {
	if id <= 0 {
		return nil, invalidArg("location_id", "must be positive, got %d", id)
	}
	loc, err := r.store.GetLocation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("location %d: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to resolve location %d: %w", id, err)
	}
	if loc.IsPool {
		return nil, invalidArg("location_id", "location %s is the pool, a center is required", loc.Code)
	}
	if !loc.IsActive {
		return nil, invalidArg("location_id", "location %s is inactive", loc.Code)
	}
	return loc, nil
}

func (r *locationRegistry) ListCenters(ctx context.Context) ([]Location, error) {
	centers, err := r.store.ListCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list centers: %w", err)
	}
	return centers, nil
}
