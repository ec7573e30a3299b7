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
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/database"
	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/internal/notification"
	redis_db "github.com/landedhq/landed/internal/redis-db"
	"github.com/landedhq/landed/model"
)

// WorkQueue is the durable queue service: it owns the entry lifecycle and
// hides the compare-and-set plumbing behind the mark operations.
type WorkQueue struct {
	datasource database.IDataSource
	maxRetries int
}

func NewWorkQueue(db database.IDataSource, maxRetries int) *WorkQueue {
	return &WorkQueue{datasource: db, maxRetries: maxRetries}
}

// AddEntry creates a PENDING entry on the named queue.
func (q *WorkQueue) AddEntry(ctx context.Context, queueName, taskType string, payload []byte, priority int) (*model.QueueEntry, error) {
	entry := &model.QueueEntry{
		QueueName: queueName,
		TaskType:  taskType,
		Payload:   payload,
		Priority:  priority,
	}
	return q.datasource.AddQueueEntry(ctx, entry)
}

// ClaimNext atomically claims the oldest claimable entry. nil means the
// queue is drained or a concurrent claimer won the entry.
func (q *WorkQueue) ClaimNext(ctx context.Context, queueName string) (*model.QueueEntry, error) {
	return q.datasource.ClaimNextEntry(ctx, queueName)
}

// MarkComplete finishes an entry successfully. Terminal.
func (q *WorkQueue) MarkComplete(ctx context.Context, entry *model.QueueEntry, note string) error {
	return q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusComplete, note, 0)
}

// MarkAbandoned returns a transiently-failed entry to PENDING and spends one
// retry. Past the retry budget the entry dead-letters to FAILED instead, with
// payload and note preserved for inspection.
func (q *WorkQueue) MarkAbandoned(ctx context.Context, entry *model.QueueEntry, note string) error {
	if entry.RetryCount+1 > q.maxRetries {
		deadLetterNote := fmt.Sprintf("dead-lettered after %d retries: %s", entry.RetryCount, note)
		err := q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusFailed, deadLetterNote, 1)
		if err == nil {
			notification.NotifyError(fmt.Errorf("queue entry %s on %s dead-lettered: %s", entry.EntryID, entry.QueueName, note))
		}
		return err
	}
	return q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusPending, note, 1)
}

// MarkIncomplete pauses an entry because the execution budget ran out. The
// entry returns to PENDING without spending a retry; the caller requests
// rescheduling.
func (q *WorkQueue) MarkIncomplete(ctx context.Context, entry *model.QueueEntry, note string) error {
	return q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusPending, note, 0)
}

// MarkFailed dead-letters an entry for a permanent failure. Terminal.
func (q *WorkQueue) MarkFailed(ctx context.Context, entry *model.QueueEntry, note string) error {
	err := q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusFailed, note, 0)
	if err == nil {
		notification.NotifyError(fmt.Errorf("queue entry %s on %s failed permanently: %s", entry.EntryID, entry.QueueName, note))
	}
	return err
}

// RequeueDeadLetter manually returns a FAILED entry to PENDING with a fresh
// retry budget. The operational path for inspected dead letters.
func (q *WorkQueue) RequeueDeadLetter(ctx context.Context, entryID, note string) (*model.QueueEntry, error) {
	entry, err := q.datasource.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.StatusFailed {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("entry %s is %s, only FAILED entries can be requeued", entryID, entry.Status), nil)
	}
	err = q.datasource.TransitionEntry(ctx, entry.EntryID, entry.Version, model.StatusPending, note, -entry.RetryCount)
	if err != nil {
		return nil, err
	}
	return q.datasource.GetQueueEntry(ctx, entryID)
}

// Entries lists entries for monitoring; status may be empty for all.
func (q *WorkQueue) Entries(ctx context.Context, queueName string, status model.EntryStatus, limit int) ([]model.QueueEntry, error) {
	return q.datasource.GetQueueEntries(ctx, queueName, status, limit)
}

// GetEntry fetches one entry by id.
func (q *WorkQueue) GetEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	return q.datasource.GetQueueEntry(ctx, entryID)
}

// TaskTypeProcessQueue is the asynq task that triggers a processor run for
// one queue name.
const TaskTypeProcessQueue = "queue:process"

// TriggerQueue is the asynq queue trigger tasks land on.
const TriggerQueue = "landed:triggers"

// Scheduler is the host trigger mechanism: it asks asynq to invoke the
// processor for a queue name, either on schedule or "again soon" when a
// paused processor requests rescheduling.
type Scheduler struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewScheduler initializes the asynq client used to request processor
// invocations.
func NewScheduler(conf *config.Configuration) *Scheduler {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Scheduler{
		Client:    client,
		Inspector: inspector,
	}
}

// RequestInvocation asks for a processor run on queueName after delay. The
// task id pins one pending trigger per queue, so a reschedule request while
// one is already pending is a no-op rather than a duplicate.
func (s *Scheduler) RequestInvocation(ctx context.Context, queueName string, delay time.Duration) error {
	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("trigger:%s", queueName)),
		asynq.Queue(TriggerQueue),
		asynq.ProcessIn(delay),
	}
	task := asynq.NewTask(TaskTypeProcessQueue, []byte(queueName), taskOptions...)
	_, err := s.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf(" [*] Requested processor invocation for queue: %s", queueName)
	return nil
}

// EnqueueAllocation freezes the template and creates queue entries for the
// transaction, one per batch of lines, then requests a processor invocation
// for its shard. All batches of a transaction land on the same shard, so
// claim ordering keeps them sequential.
func (l *Landed) EnqueueAllocation(ctx context.Context, txn *model.Transaction, template model.CostTemplate) ([]*model.QueueEntry, error) {
	ctx, span := tracer.Start(ctx, "Adding Allocation To Work Queue")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	queueName, err := l.queueNameFor(txn.TransactionID)
	if err != nil {
		return nil, err
	}

	snapshot := model.SnapshotTemplate(template, time.Now())
	batches := batchLines(txn.Lines, cnf.Allocation.BatchSize)

	entries := make([]*model.QueueEntry, 0, len(batches))
	for i, batch := range batches {
		task := model.AllocationTask{
			TransactionID:    txn.TransactionID,
			LocationKey:      txn.LocationKey,
			CurrencyKey:      txn.CurrencyKey,
			SourceDocumentID: sourceDocumentOf(txn),
			Snapshot:         snapshot,
			Lines:            batch,
		}
		if len(batches) > 1 {
			task.Batch = i + 1
			task.BatchCount = len(batches)
		}
		payload, err := task.ToJSON()
		if err != nil {
			return nil, err
		}

		entry, err := l.queue.AddEntry(ctx, queueName, model.TaskTypeAllocation, payload, 0)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	log.Printf(" [*] Successfully enqueued allocation: %s on %s (%d entries)",
		txn.TransactionID, queueName, len(entries))

	if err := l.scheduler.RequestInvocation(ctx, queueName, warmupDelay); err != nil {
		log.Printf("Error requesting processor invocation: %v", err)
	}
	return entries, nil
}

// batchLines splits lines into consecutive slices of at most size lines.
func batchLines(lines []model.TransactionLine, size int) [][]model.TransactionLine {
	if size <= 0 || len(lines) <= size {
		return [][]model.TransactionLine{lines}
	}
	batches := make([][]model.TransactionLine, 0, (len(lines)+size-1)/size)
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[start:end])
	}
	return batches
}

// queueNameFor shards transactions across the configured number of queues so
// entries for the same transaction always land, and stay ordered, on the
// same queue.
func (l *Landed) queueNameFor(transactionID string) (string, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return "", err
	}
	queueIndex := hashTransactionID(transactionID) % cnf.Queue.NumberOfQueues
	return fmt.Sprintf("%s_%d", cnf.Queue.QueuePrefix, queueIndex+1), nil
}

// hashTransactionID returns a consistent hash value for a transaction id.
func hashTransactionID(transactionID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(transactionID))
	return int(hasher.Sum32())
}
