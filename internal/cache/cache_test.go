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
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landedhq/landed/model"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := newRedisCache([]string{"redis://" + mr.Addr()})
	require.NoError(t, err)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	profile := model.ItemCostProfile{ItemID: "SKU-1", Strategy: model.StrategySourceDocument}
	require.NoError(t, c.Set(ctx, "rate-strategy:SKU-1", &profile, time.Minute))

	var got model.ItemCostProfile
	require.NoError(t, c.Get(ctx, "rate-strategy:SKU-1", &got))
	assert.Equal(t, "SKU-1", got.ItemID)
	assert.Equal(t, model.StrategySourceDocument, got.Strategy)
}

func TestCacheMissIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	var got model.ItemCostProfile
	err := c.Get(context.Background(), "rate-strategy:SKU-MISSING", &got)
	require.NoError(t, err)
	assert.Empty(t, got.ItemID)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	profile := model.ItemCostProfile{ItemID: "SKU-1", Strategy: model.StrategyLocationAverage}
	require.NoError(t, c.Set(ctx, "rate-strategy:SKU-1", &profile, time.Minute))
	require.NoError(t, c.Delete(ctx, "rate-strategy:SKU-1"))

	var got model.ItemCostProfile
	require.NoError(t, c.Get(ctx, "rate-strategy:SKU-1", &got))
	assert.Empty(t, got.ItemID)
}
