/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package landed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/landedhq/landed/database"
	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/internal/cache"
	"github.com/landedhq/landed/model"
)

// RateContext carries the transaction-side inputs a rate lookup needs.
type RateContext struct {
	LocationKey string
	// SourceDocumentID identifies the document that produced the inventory
	// being processed, e.g. the receipt preceding a transfer. Empty when the
	// transaction has no source document.
	SourceDocumentID string
}

// RateResolver resolves a unit cost for an item when a transaction line
// carries no explicit rate. Failure to resolve is reported as an
// apierror.ErrRateResolution error; callers degrade the affected
// contribution to zero instead of aborting.
type RateResolver interface {
	ResolveRate(ctx context.Context, itemID string, rc RateContext) (decimal.Decimal, error)
}

// strategyCacheTTL bounds how long per-item strategy profiles are reused
// across allocation runs.
const strategyCacheTTL = 10 * time.Minute

type rateOutcome struct {
	rate decimal.Decimal
	err  error
}

// runResolver is a per-run resolver: each item is resolved at most once per
// allocation run, no matter how many template details reference it. Strategy
// profiles additionally come from the shared cache so repeated runs skip the
// config read.
type runResolver struct {
	datasource database.IDataSource
	cache      cache.Cache
	memo       map[string]rateOutcome
	strategies map[string]model.RateStrategy
}

// NewRunResolver builds a resolver scoped to a single allocation run. The
// cache may be nil, in which case profiles are read straight from the
// datasource.
func NewRunResolver(db database.IDataSource, strategyCache cache.Cache) RateResolver {
	return &runResolver{
		datasource: db,
		cache:      strategyCache,
		memo:       make(map[string]rateOutcome),
		strategies: make(map[string]model.RateStrategy),
	}
}

func (r *runResolver) ResolveRate(ctx context.Context, itemID string, rc RateContext) (decimal.Decimal, error) {
	if outcome, ok := r.memo[itemID]; ok {
		return outcome.rate, outcome.err
	}

	rate, err := r.resolve(ctx, itemID, rc)
	r.memo[itemID] = rateOutcome{rate: rate, err: err}
	return rate, err
}

func (r *runResolver) resolve(ctx context.Context, itemID string, rc RateContext) (decimal.Decimal, error) {
	strategy, err := r.strategyFor(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}

	switch strategy {
	case model.StrategySourceDocument:
		if rc.SourceDocumentID == "" {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution,
				"Item uses source-document costing but the transaction has no source document",
				map[string]string{"item_id": itemID})
		}
		return r.datasource.GetSourceDocumentCost(ctx, itemID, rc.SourceDocumentID)
	case model.StrategyLocationAverage:
		return r.datasource.GetLocationAverageCost(ctx, itemID, rc.LocationKey)
	default:
		return decimal.Zero, apierror.NewAPIError(apierror.ErrValidation,
			fmt.Sprintf("unknown rate strategy %q for item %s", strategy, itemID), nil)
	}
}

// strategyFor resolves the per-item strategy once per run, consulting the
// shared cache before the datasource.
func (r *runResolver) strategyFor(ctx context.Context, itemID string) (model.RateStrategy, error) {
	if strategy, ok := r.strategies[itemID]; ok {
		return strategy, nil
	}

	cacheKey := fmt.Sprintf("rate-strategy:%s", itemID)
	if r.cache != nil {
		var cached model.ItemCostProfile
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil && cached.Strategy != "" {
			r.strategies[itemID] = cached.Strategy
			return cached.Strategy, nil
		}
	}

	profile, err := r.datasource.GetItemCostProfile(ctx, itemID)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, profile, strategyCacheTTL); err != nil {
			logrus.Warnf("failed to cache rate strategy for item %s: %v", itemID, err)
		}
	}

	r.strategies[itemID] = profile.Strategy
	return profile.Strategy, nil
}
