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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landedhq/landed/model"
)

// ageEntry backdates an entry's last update so it looks abandoned.
func ageEntry(ds *mockDataSource, entryID string, age time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.entries[entryID].UpdatedAt = time.Now().Add(-age)
}

func TestRecoverySweepReturnsStuckEntriesToPending(t *testing.T) {
	mockTestConfig()
	ds := newMockDataSource()
	invoker := &countingInvoker{}
	service := &Landed{datasource: ds, scheduler: invoker, queue: NewWorkQueue(ds, 3)}

	stuck := addTestEntry(t, ds, "noop")
	fresh := addTestEntry(t, ds, "noop")

	claimed, err := service.queue.ClaimNext(context.Background(), testQueue)
	require.NoError(t, err)
	require.Equal(t, stuck.EntryID, claimed.EntryID)
	ageEntry(ds, stuck.EntryID, 2*time.Hour)

	sweeper := NewStuckEntryRecoveryProcessor(service)
	recovered := sweeper.sweep(context.Background(), time.Hour)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 1, invoker.count())

	got, err := ds.GetQueueEntry(context.Background(), stuck.EntryID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	untouched, err := ds.GetQueueEntry(context.Background(), fresh.EntryID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, untouched.Status)
	assert.Equal(t, 0, untouched.RetryCount)
}

func TestRecoverySweepLeavesFreshProcessingAlone(t *testing.T) {
	mockTestConfig()
	ds := newMockDataSource()
	invoker := &countingInvoker{}
	service := &Landed{datasource: ds, scheduler: invoker, queue: NewWorkQueue(ds, 3)}

	entry := addTestEntry(t, ds, "noop")
	_, err := service.queue.ClaimNext(context.Background(), testQueue)
	require.NoError(t, err)

	sweeper := NewStuckEntryRecoveryProcessor(service)
	recovered := sweeper.sweep(context.Background(), time.Hour)
	assert.Equal(t, 0, recovered)
	assert.Equal(t, 0, invoker.count())

	got, err := ds.GetQueueEntry(context.Background(), entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestManualRecoveryEnforcesThresholdFloor(t *testing.T) {
	mockTestConfig()
	ds := newMockDataSource()
	invoker := &countingInvoker{}
	service := &Landed{datasource: ds, scheduler: invoker, queue: NewWorkQueue(ds, 3)}

	entry := addTestEntry(t, ds, "noop")
	_, err := service.queue.ClaimNext(context.Background(), testQueue)
	require.NoError(t, err)
	ageEntry(ds, entry.EntryID, time.Minute)

	// A one-minute-old claim is live work; the floor keeps an aggressive
	// manual threshold from yanking it.
	recovered, err := service.RecoverStuckEntries(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	ageEntry(ds, entry.EntryID, 3*time.Minute)
	recovered, err = service.RecoverStuckEntries(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
}

func TestRecoveryProcessorStartStop(t *testing.T) {
	mockTestConfig()
	ds := newMockDataSource()
	service := &Landed{datasource: ds, scheduler: &countingInvoker{}, queue: NewWorkQueue(ds, 3)}

	sweeper := NewStuckEntryRecoveryProcessor(service)
	assert.False(t, sweeper.IsRunning())

	sweeper.Start(context.Background())
	assert.True(t, sweeper.IsRunning())

	sweeper.Stop()
	assert.False(t, sweeper.IsRunning())
}
