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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// countingCostSource counts cost lookups on top of the in-memory datasource.
type countingCostSource struct {
	*mockDataSource
	locationLookups int
	profileLookups  int
}

func (c *countingCostSource) GetLocationAverageCost(ctx context.Context, itemID, locationKey string) (decimal.Decimal, error) {
	c.locationLookups++
	return c.mockDataSource.GetLocationAverageCost(ctx, itemID, locationKey)
}

func (c *countingCostSource) GetItemCostProfile(ctx context.Context, itemID string) (*model.ItemCostProfile, error) {
	c.profileLookups++
	return c.mockDataSource.GetItemCostProfile(ctx, itemID)
}

// profileCache is an in-memory Cache stub for strategy profiles.
type profileCache struct {
	profiles map[string]model.ItemCostProfile
	sets     int
}

func (c *profileCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if profile, ok := value.(*model.ItemCostProfile); ok {
		c.profiles[key] = *profile
	}
	c.sets++
	return nil
}

func (c *profileCache) Get(_ context.Context, key string, data interface{}) error {
	profile, ok := c.profiles[key]
	if !ok {
		return nil
	}
	if target, ok := data.(*model.ItemCostProfile); ok {
		*target = profile
	}
	return nil
}

func (c *profileCache) Delete(_ context.Context, key string) error {
	delete(c.profiles, key)
	return nil
}

func TestResolverUsesLocationAverageByDefault(t *testing.T) {
	ds := newMockDataSource()
	ds.locationCosts["SKU-1|WH-EAST"] = dec("4.25")

	resolver := NewRunResolver(ds, nil)
	rate, err := resolver.ResolveRate(context.Background(), "SKU-1", RateContext{LocationKey: "WH-EAST"})
	require.NoError(t, err)
	assert.Equal(t, "4.25", rate.StringFixed(2))
}

func TestResolverUsesSourceDocumentStrategy(t *testing.T) {
	ds := newMockDataSource()
	ds.strategies["SKU-1"] = model.StrategySourceDocument
	ds.documentCosts["SKU-1|doc_99"] = dec("3.10")
	ds.locationCosts["SKU-1|WH-EAST"] = dec("9.99")

	resolver := NewRunResolver(ds, nil)
	rate, err := resolver.ResolveRate(context.Background(), "SKU-1",
		RateContext{LocationKey: "WH-EAST", SourceDocumentID: "doc_99"})
	require.NoError(t, err)
	assert.Equal(t, "3.10", rate.StringFixed(2))
}

func TestResolverSourceDocumentRequiresDocument(t *testing.T) {
	ds := newMockDataSource()
	ds.strategies["SKU-1"] = model.StrategySourceDocument

	resolver := NewRunResolver(ds, nil)
	_, err := resolver.ResolveRate(context.Background(), "SKU-1", RateContext{LocationKey: "WH-EAST"})
	require.Error(t, err)
	assert.Equal(t, apierror.ErrRateResolution, apierror.CodeOf(err))
}

func TestResolverUnknownStrategyIsValidationError(t *testing.T) {
	ds := newMockDataSource()
	ds.strategies["SKU-1"] = model.RateStrategy("fifo")

	resolver := NewRunResolver(ds, nil)
	_, err := resolver.ResolveRate(context.Background(), "SKU-1", RateContext{LocationKey: "WH-EAST"})
	require.Error(t, err)
	assert.Equal(t, apierror.ErrValidation, apierror.CodeOf(err))
}

func TestResolverResolvesEachItemOncePerRun(t *testing.T) {
	ds := newMockDataSource()
	ds.locationCosts["SKU-1|WH-EAST"] = dec("2.00")
	source := &countingCostSource{mockDataSource: ds}

	resolver := NewRunResolver(source, nil)
	rc := RateContext{LocationKey: "WH-EAST"}
	for i := 0; i < 5; i++ {
		rate, err := resolver.ResolveRate(context.Background(), "SKU-1", rc)
		require.NoError(t, err)
		assert.Equal(t, "2.00", rate.StringFixed(2))
	}

	assert.Equal(t, 1, source.locationLookups)
	assert.Equal(t, 1, source.profileLookups)
}

func TestResolverMemoizesFailuresToo(t *testing.T) {
	ds := newMockDataSource()
	source := &countingCostSource{mockDataSource: ds}

	resolver := NewRunResolver(source, nil)
	rc := RateContext{LocationKey: "WH-EAST"}
	for i := 0; i < 3; i++ {
		_, err := resolver.ResolveRate(context.Background(), "SKU-MISSING", rc)
		require.Error(t, err)
	}
	assert.Equal(t, 1, source.locationLookups)
}

func TestResolverConsultsStrategyCacheFirst(t *testing.T) {
	ds := newMockDataSource()
	// The datasource says location_average; the cache says source_document.
	ds.locationCosts["SKU-1|WH-EAST"] = dec("9.99")
	ds.documentCosts["SKU-1|doc_7"] = dec("1.00")

	cached := &profileCache{profiles: map[string]model.ItemCostProfile{
		"rate-strategy:SKU-1": {ItemID: "SKU-1", Strategy: model.StrategySourceDocument},
	}}

	resolver := NewRunResolver(ds, cached)
	rate, err := resolver.ResolveRate(context.Background(), "SKU-1",
		RateContext{LocationKey: "WH-EAST", SourceDocumentID: "doc_7"})
	require.NoError(t, err)
	assert.Equal(t, "1.00", rate.StringFixed(2))
	// Already cached, so nothing was written back.
	assert.Equal(t, 0, cached.sets)
}

func TestResolverPopulatesStrategyCacheOnMiss(t *testing.T) {
	ds := newMockDataSource()
	ds.locationCosts["SKU-1|WH-EAST"] = dec("2.50")
	cached := &profileCache{profiles: map[string]model.ItemCostProfile{}}

	resolver := NewRunResolver(ds, cached)
	_, err := resolver.ResolveRate(context.Background(), "SKU-1", RateContext{LocationKey: "WH-EAST"})
	require.NoError(t, err)
	assert.Equal(t, 1, cached.sets)
	assert.Contains(t, cached.profiles, "rate-strategy:SKU-1")
}
