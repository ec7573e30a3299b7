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

package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/landedhq/landed/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	template
	transaction
	itemCost
	allocation
	queue
}

// template defines methods for cost template configuration.
type template interface {
	CreateCostTemplate(ctx context.Context, tpl model.CostTemplate) (model.CostTemplate, error)
	GetCostTemplate(ctx context.Context, templateID string) (*model.CostTemplate, error)
	// GetCostTemplateForKey resolves the template applicable to a
	// location/currency combination.
	GetCostTemplateForKey(ctx context.Context, locationKey, currencyKey string) (*model.CostTemplate, error)
}

// transaction defines methods for the receiving-transaction descriptors.
type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
}

// itemCost defines the lookups behind the rate resolver.
type itemCost interface {
	GetItemCostProfile(ctx context.Context, itemID string) (*model.ItemCostProfile, error)
	GetLocationAverageCost(ctx context.Context, itemID, locationKey string) (decimal.Decimal, error)
	GetSourceDocumentCost(ctx context.Context, itemID, documentID string) (decimal.Decimal, error)
}

// allocation defines persistence for allocation output. Writes replace the
// whole result set for a (transaction, template) key so retries cannot
// double-count.
type allocation interface {
	ReplaceAllocationResults(ctx context.Context, result *model.AllocationResult) error
	GetAllocationResults(ctx context.Context, transactionID, templateID string) (*model.AllocationResult, error)
}

// queue defines the durable work queue operations.
type queue interface {
	AddQueueEntry(ctx context.Context, entry *model.QueueEntry) (*model.QueueEntry, error)
	// ClaimNextEntry atomically moves the oldest PENDING entry (priority
	// desc, creation asc) to PROCESSING. Returns nil when the queue is
	// drained or another claimer won the race.
	ClaimNextEntry(ctx context.Context, queueName string) (*model.QueueEntry, error)
	// TransitionEntry applies a compare-and-set status change; the update is
	// a no-op error (ErrConflict) when the expected version no longer
	// matches.
	TransitionEntry(ctx context.Context, entryID string, expectedVersion int, to model.EntryStatus, note string, retryDelta int) error
	GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error)
	GetQueueEntries(ctx context.Context, queueName string, status model.EntryStatus, limit int) ([]model.QueueEntry, error)
	// RecoverStuckEntries returns PROCESSING entries older than threshold to
	// PENDING, with a recovery note. Returns the number of entries swept.
	RecoverStuckEntries(ctx context.Context, queueName string, threshold time.Duration, maxRecoveries int) (int, error)
}
