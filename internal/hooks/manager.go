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

package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/landedhq/landed/internal/notification"
	"github.com/landedhq/landed/model"
)

const (
	hookKeyPrefix     = "allocation-hooks"
	preHookKeyPrefix  = "allocation-hooks:pre"
	postHookKeyPrefix = "allocation-hooks:post"
)

type redisHookManager struct {
	client redis.UniversalClient
}

// NewHookManager creates a Redis-backed hook registry.
func NewHookManager(redisClient redis.UniversalClient) HookManager {
	return &redisHookManager{client: redisClient}
}

func (m *redisHookManager) RegisterHook(ctx context.Context, hook *Hook) error {
	if hook.ID == "" {
		hook.ID = model.GenerateUUIDWithSuffix("hook")
	}
	hook.CreatedAt = time.Now()

	if err := validateHook(hook); err != nil {
		return err
	}

	key := fmt.Sprintf("%s:%s", hookKeyPrefix, hook.ID)
	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal hook: %w", err)
	}

	if err := m.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store hook: %w", err)
	}

	// Type-specific set for faster lookups at execution time.
	if err := m.client.SAdd(ctx, getTypeKey(hook.Type), hook.ID).Err(); err != nil {
		return fmt.Errorf("failed to add hook to type set: %w", err)
	}

	return nil
}

func (m *redisHookManager) UpdateHook(ctx context.Context, hookID string, hook *Hook) error {
	existing, err := m.GetHook(ctx, hookID)
	if err != nil {
		return fmt.Errorf("hook not found: %s", hookID)
	}

	hook.ID = existing.ID
	hook.CreatedAt = existing.CreatedAt
	hook.LastRun = existing.LastRun
	hook.LastSuccess = existing.LastSuccess

	if err := validateHook(hook); err != nil {
		return err
	}

	if existing.Type != hook.Type {
		if err := m.client.SRem(ctx, getTypeKey(existing.Type), hookID).Err(); err != nil {
			return err
		}
		if err := m.client.SAdd(ctx, getTypeKey(hook.Type), hookID).Err(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal hook: %w", err)
	}

	key := fmt.Sprintf("%s:%s", hookKeyPrefix, hookID)
	return m.client.Set(ctx, key, data, 0).Err()
}

func (m *redisHookManager) DeleteHook(ctx context.Context, hookID string) error {
	hook, err := m.GetHook(ctx, hookID)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf("%s:%s", hookKeyPrefix, hookID))
	pipe.SRem(ctx, getTypeKey(hook.Type), hookID)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *redisHookManager) GetHook(ctx context.Context, hookID string) (*Hook, error) {
	key := fmt.Sprintf("%s:%s", hookKeyPrefix, hookID)
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("hook not found: %s", hookID)
		}
		return nil, err
	}

	var hook Hook
	if err := json.Unmarshal(data, &hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hook: %w", err)
	}

	return &hook, nil
}

func (m *redisHookManager) ListHooks(ctx context.Context, hookType HookType) ([]*Hook, error) {
	hookIDs, err := m.client.SMembers(ctx, getTypeKey(hookType)).Result()
	if err != nil {
		return nil, err
	}

	hooks := make([]*Hook, 0, len(hookIDs))
	for _, id := range hookIDs {
		hook, err := m.GetHook(ctx, id)
		if err != nil {
			continue
		}
		hooks = append(hooks, hook)
	}

	return hooks, nil
}

// ExecutePreHooks notifies subscribers that an allocation run is starting.
func (m *redisHookManager) ExecutePreHooks(ctx context.Context, transactionID string, data interface{}) error {
	hooks, err := m.ListHooks(ctx, PreAllocation)
	if err != nil {
		return err
	}
	return m.executeHooks(hooks, PreAllocation, transactionID, data)
}

// ExecutePostHooks delivers a finished allocation result, including any
// consumption requests, to subscribers.
func (m *redisHookManager) ExecutePostHooks(ctx context.Context, transactionID string, data interface{}) error {
	hooks, err := m.ListHooks(ctx, PostAllocation)
	if err != nil {
		return err
	}
	return m.executeHooks(hooks, PostAllocation, transactionID, data)
}

// executeHooks fans out asynchronously; delivery failures are reported via
// the notification channel, never back to the allocation run.
func (m *redisHookManager) executeHooks(hooks []*Hook, hookType HookType, transactionID string, data interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal hook data: %w", err)
	}

	payload := HookPayload{
		TransactionID: transactionID,
		HookType:      hookType,
		Timestamp:     time.Now(),
		Data:          dataBytes,
	}

	for _, hook := range hooks {
		if !hook.Active {
			continue
		}

		go func(h *Hook) {
			hookCtx, cancel := context.WithTimeout(context.Background(), time.Duration(h.Timeout)*time.Second)
			defer cancel()

			if err := m.executeHook(hookCtx, h, payload); err != nil {
				notification.NotifyError(fmt.Errorf("hook execution failed for hook %s (type: %s): %w", h.ID, h.Type, err))
			}
		}(hook)
	}

	return nil
}

func validateHook(hook *Hook) error {
	if hook.URL == "" {
		return fmt.Errorf("hook URL is required")
	}
	if hook.Type != PreAllocation && hook.Type != PostAllocation {
		return fmt.Errorf("invalid hook type: %s", hook.Type)
	}
	if hook.Timeout <= 0 {
		hook.Timeout = 30
	}
	if hook.RetryCount < 0 {
		hook.RetryCount = 3
	}
	return nil
}

func getTypeKey(hookType HookType) string {
	switch hookType {
	case PreAllocation:
		return preHookKeyPrefix
	case PostAllocation:
		return postHookKeyPrefix
	default:
		return hookKeyPrefix
	}
}
