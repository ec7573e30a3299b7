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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// executeHook delivers one webhook. A single attempt only; redelivery is the
// subscriber's concern. The hook's LastRun/LastSuccess are updated whatever
// the outcome.
func (m *redisHookManager) executeHook(ctx context.Context, hook *Hook, payload HookPayload) error {
	deliveryErr := m.deliver(ctx, hook, payload)
	_ = m.updateHookStatus(ctx, hook, deliveryErr == nil)

	if deliveryErr != nil {
		logrus.WithFields(logrus.Fields{
			"hook_id":   hook.ID,
			"hook_type": hook.Type,
		}).WithError(deliveryErr).Warn("webhook delivery failed")
		return deliveryErr
	}

	logrus.WithFields(logrus.Fields{
		"hook_id":   hook.ID,
		"hook_type": hook.Type,
	}).Info("webhook delivered")
	return nil
}

func (m *redisHookManager) deliver(ctx context.Context, hook *Hook, payload HookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", hook.URL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hook-ID", hook.ID)
	req.Header.Set("X-Hook-Type", string(hook.Type))

	client := &http.Client{Timeout: time.Duration(hook.Timeout) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logrus.WithError(cerr).Error("failed to close response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return evaluateResponse(resp.StatusCode, respBody)
}

// evaluateResponse decides whether a delivery counts as accepted. Any 4xx/5xx
// fails; a 2xx carrying a structured HookResponse with success=false also
// fails, so subscribers can reject a payload without an error status.
func evaluateResponse(statusCode int, body []byte) error {
	if statusCode >= 400 {
		return fmt.Errorf("hook returned status %d: %s", statusCode, string(body))
	}

	if len(body) == 0 || !json.Valid(body) {
		return nil
	}

	var hookResp HookResponse
	if err := json.Unmarshal(body, &hookResp); err == nil && hookResp.Message != "" && !hookResp.Success {
		return fmt.Errorf("hook execution failed: %s", hookResp.Message)
	}
	return nil
}

func (m *redisHookManager) updateHookStatus(ctx context.Context, hook *Hook, success bool) error {
	hook.LastRun = time.Now()
	hook.LastSuccess = success

	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal hook: %w", err)
	}

	key := fmt.Sprintf("%s:%s", hookKeyPrefix, hook.ID)
	return m.client.Set(ctx, key, data, 0).Err()
}
