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

package model

import (
	"encoding/json"
	"time"
)

// EntryStatus is the lifecycle state of a queue entry.
//
//	         AddEntry
//	(none) ────────────► PENDING
//	PENDING ── claim ───► PROCESSING
//	PROCESSING ── success ──────────► COMPLETE
//	PROCESSING ── transient failure ► PENDING   (retry count +1)
//	PROCESSING ── budget exhausted ─► PENDING   (no retry increment)
//	PROCESSING ── permanent failure ► FAILED
//	PENDING ── retries past max ────► FAILED
type EntryStatus string

const (
	StatusPending    EntryStatus = "PENDING"
	StatusProcessing EntryStatus = "PROCESSING"
	StatusComplete   EntryStatus = "COMPLETE"
	StatusFailed     EntryStatus = "FAILED"
)

// IsTerminal reports whether no further transition can move the entry.
func (s EntryStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// QueueEntry is one durable unit of work. Version is the optimistic
// concurrency token: every transition checks-and-bumps it, so two processors
// racing on the same entry cannot both win the claim.
type QueueEntry struct {
	ID         int64           `json:"-"`
	EntryID    string          `json:"entry_id"`
	QueueName  string          `json:"queue_name"`
	TaskType   string          `json:"task_type"`
	Payload    json.RawMessage `json:"payload"`
	Priority   int             `json:"priority"`
	Status     EntryStatus     `json:"status"`
	RetryCount int             `json:"retry_count"`
	Version    int             `json:"version"`
	Note       string          `json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TaskTypeAllocation is the task type the allocation task body is registered
// under.
const TaskTypeAllocation = "allocation"

// AllocationTask is the payload of an allocation queue entry. It carries a
// frozen template snapshot and the slice of lines this entry covers, so a
// retried entry always re-derives the same result even if master data moved.
type AllocationTask struct {
	TransactionID    string            `json:"transaction_id"`
	LocationKey      string            `json:"location_key"`
	CurrencyKey      string            `json:"currency_key"`
	SourceDocumentID string            `json:"source_document_id,omitempty"`
	Snapshot         TemplateSnapshot  `json:"snapshot"`
	Lines            []TransactionLine `json:"lines"`
	// Batch is the 1-based slice of the transaction this task carries when
	// its lines fanned out across several entries. Zero means the task holds
	// the whole transaction.
	Batch      int `json:"batch,omitempty"`
	BatchCount int `json:"batch_count,omitempty"`
}

func (t *AllocationTask) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}
