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
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/database"
	"github.com/landedhq/landed/internal/cache"
	"github.com/landedhq/landed/internal/hooks"
	redis_db "github.com/landedhq/landed/internal/redis-db"
)

var tracer trace.Tracer = otel.Tracer("landed.allocation")

// Landed wires the allocation engine, rate resolver, work queue and
// scheduler together behind one service struct.
type Landed struct {
	datasource database.IDataSource
	scheduler  Invoker
	queue      *WorkQueue
	cache      cache.Cache
	redis      redis.UniversalClient
	hooks      hooks.HookManager
}

// NewLanded initializes the service from the loaded configuration.
func NewLanded(db database.IDataSource) (*Landed, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	strategyCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	scheduler := NewScheduler(configuration)
	workQueue := NewWorkQueue(db, configuration.Queue.MaxRetryAttempts)

	return &Landed{
		datasource: db,
		scheduler:  scheduler,
		queue:      workQueue,
		cache:      strategyCache,
		redis:      redisClient.Client(),
		hooks:      hooks.NewHookManager(redisClient.Client()),
	}, nil
}

// Queue exposes the work queue for operational tooling.
func (l *Landed) Queue() *WorkQueue {
	return l.queue
}

// Scheduler exposes the trigger scheduler.
func (l *Landed) Scheduler() Invoker {
	return l.scheduler
}

// Hooks exposes the allocation webhook registry.
func (l *Landed) Hooks() hooks.HookManager {
	return l.hooks
}
