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
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// mockDataSource is an in-memory database.IDataSource used by tests that
// exercise queue lifecycle and engine orchestration without a database.
type mockDataSource struct {
	mu sync.Mutex

	templates      map[string]model.CostTemplate
	templatesByKey map[string]model.CostTemplate
	transactions   map[string]*model.Transaction
	strategies     map[string]model.RateStrategy
	locationCosts  map[string]decimal.Decimal
	documentCosts  map[string]decimal.Decimal
	results        map[string]map[int]*model.AllocationResult
	entries        map[string]*model.QueueEntry
	entryOrder     []string

	// replaceFailures fails the first N ReplaceAllocationResults calls with a
	// transient error.
	replaceFailures int
	replaceCalls    int

	// transitionFailures fails the first N TransitionEntry calls with a
	// transient error.
	transitionFailures int
	transitionCalls    int
}

func newMockDataSource() *mockDataSource {
	return &mockDataSource{
		templates:      make(map[string]model.CostTemplate),
		templatesByKey: make(map[string]model.CostTemplate),
		transactions:   make(map[string]*model.Transaction),
		strategies:     make(map[string]model.RateStrategy),
		locationCosts:  make(map[string]decimal.Decimal),
		documentCosts:  make(map[string]decimal.Decimal),
		results:        make(map[string]map[int]*model.AllocationResult),
		entries:        make(map[string]*model.QueueEntry),
	}
}

func resultKey(transactionID, templateID string) string {
	return transactionID + "|" + templateID
}

func (m *mockDataSource) CreateCostTemplate(_ context.Context, tpl model.CostTemplate) (model.CostTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrValidation, err.Error(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tpl.LocationKey + "|" + tpl.CurrencyKey
	if _, exists := m.templatesByKey[key]; exists {
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("a template already exists for %s/%s", tpl.LocationKey, tpl.CurrencyKey), nil)
	}
	if tpl.TemplateID == "" {
		tpl.TemplateID = model.GenerateUUIDWithSuffix("ct")
	}
	tpl.CreatedAt = time.Now()
	m.templates[tpl.TemplateID] = tpl
	m.templatesByKey[key] = tpl
	return tpl, nil
}

func (m *mockDataSource) GetCostTemplate(_ context.Context, templateID string) (*model.CostTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[templateID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("template %s not found", templateID), nil)
	}
	return &tpl, nil
}

func (m *mockDataSource) GetCostTemplateForKey(_ context.Context, locationKey, currencyKey string) (*model.CostTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templatesByKey[locationKey+"|"+currencyKey]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("no template for %s/%s", locationKey, currencyKey), nil)
	}
	return &tpl, nil
}

func (m *mockDataSource) RecordTransaction(_ context.Context, txn *model.Transaction) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn.TransactionID == "" {
		txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	}
	for i := range txn.Lines {
		if txn.Lines[i].LineID == "" {
			txn.Lines[i].LineID = model.GenerateUUIDWithSuffix("line")
		}
	}
	txn.CreatedAt = time.Now()
	m.transactions[txn.TransactionID] = txn
	return txn, nil
}

func (m *mockDataSource) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("transaction %s not found", id), nil)
	}
	return txn, nil
}

func (m *mockDataSource) GetItemCostProfile(_ context.Context, itemID string) (*model.ItemCostProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	strategy, ok := m.strategies[itemID]
	if !ok {
		strategy = model.StrategyLocationAverage
	}
	return &model.ItemCostProfile{ItemID: itemID, Strategy: strategy}, nil
}

func (m *mockDataSource) GetLocationAverageCost(_ context.Context, itemID, locationKey string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost, ok := m.locationCosts[itemID+"|"+locationKey]
	if !ok {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution,
			fmt.Sprintf("no average cost for item %s at %s", itemID, locationKey), nil)
	}
	return cost, nil
}

func (m *mockDataSource) GetSourceDocumentCost(_ context.Context, itemID, documentID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost, ok := m.documentCosts[itemID+"|"+documentID]
	if !ok {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution,
			fmt.Sprintf("no cost for item %s on document %s", itemID, documentID), nil)
	}
	return cost, nil
}

func (m *mockDataSource) ReplaceAllocationResults(_ context.Context, result *model.AllocationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceCalls <= m.replaceFailures {
		return apierror.NewAPIError(apierror.ErrTransient, "simulated write failure", nil)
	}
	key := resultKey(result.TransactionID, result.TemplateID)
	// Batch zero owns the whole pair; a positive batch replaces only itself.
	if result.Batch == 0 || m.results[key] == nil {
		m.results[key] = make(map[int]*model.AllocationResult)
	}
	m.results[key][result.Batch] = result
	return nil
}

func (m *mockDataSource) GetAllocationResults(_ context.Context, transactionID, templateID string) (*model.AllocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches, ok := m.results[resultKey(transactionID, templateID)]
	if !ok {
		return &model.AllocationResult{TransactionID: transactionID, TemplateID: templateID}, nil
	}
	order := make([]int, 0, len(batches))
	for batch := range batches {
		order = append(order, batch)
	}
	sort.Ints(order)
	combined := &model.AllocationResult{TransactionID: transactionID, TemplateID: templateID}
	for _, batch := range order {
		stored := batches[batch]
		combined.TemplateID = stored.TemplateID
		combined.Lines = append(combined.Lines, stored.Lines...)
		combined.Consumptions = append(combined.Consumptions, stored.Consumptions...)
		combined.Warnings = append(combined.Warnings, stored.Warnings...)
	}
	return combined, nil
}

func (m *mockDataSource) AddQueueEntry(_ context.Context, entry *model.QueueEntry) (*model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.EntryID == "" {
		entry.EntryID = model.GenerateUUIDWithSuffix("qe")
	}
	entry.Status = model.StatusPending
	entry.Version = 0
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	m.entries[entry.EntryID] = entry
	m.entryOrder = append(m.entryOrder, entry.EntryID)
	return entry, nil
}

func (m *mockDataSource) ClaimNextEntry(_ context.Context, queueName string) (*model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Highest priority wins, insertion order breaks ties, matching the
	// claim query's priority DESC, created_at ASC ordering.
	var best *model.QueueEntry
	for _, id := range m.entryOrder {
		entry := m.entries[id]
		if entry.QueueName != queueName || entry.Status != model.StatusPending {
			continue
		}
		if best == nil || entry.Priority > best.Priority {
			best = entry
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = model.StatusProcessing
	best.Version++
	best.UpdatedAt = time.Now()
	claimed := *best
	return &claimed, nil
}

func (m *mockDataSource) TransitionEntry(_ context.Context, entryID string, expectedVersion int, to model.EntryStatus, note string, retryDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCalls++
	if m.transitionCalls <= m.transitionFailures {
		return apierror.NewAPIError(apierror.ErrTransient, "simulated transition failure", nil)
	}
	entry, ok := m.entries[entryID]
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("entry %s not found", entryID), nil)
	}
	if entry.Version != expectedVersion {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("entry %s version %d does not match expected %d", entryID, entry.Version, expectedVersion), nil)
	}
	entry.Status = to
	entry.Note = note
	entry.RetryCount += retryDelta
	entry.Version++
	entry.UpdatedAt = time.Now()
	return nil
}

func (m *mockDataSource) GetQueueEntry(_ context.Context, entryID string) (*model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("entry %s not found", entryID), nil)
	}
	copied := *entry
	return &copied, nil
}

func (m *mockDataSource) GetQueueEntries(_ context.Context, queueName string, status model.EntryStatus, limit int) ([]model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []model.QueueEntry
	for _, id := range m.entryOrder {
		entry := m.entries[id]
		if entry.QueueName != queueName {
			continue
		}
		if status != "" && entry.Status != status {
			continue
		}
		entries = append(entries, *entry)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (m *mockDataSource) RecoverStuckEntries(_ context.Context, queueName string, threshold time.Duration, maxRecoveries int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recovered := 0
	cutoff := time.Now().Add(-threshold)
	for _, id := range m.entryOrder {
		entry := m.entries[id]
		if entry.QueueName != queueName || entry.Status != model.StatusProcessing {
			continue
		}
		if entry.UpdatedAt.After(cutoff) || entry.RetryCount >= maxRecoveries {
			continue
		}
		entry.Status = model.StatusPending
		entry.RetryCount++
		entry.Version++
		entry.Note = "recovered from stuck PROCESSING state"
		entry.UpdatedAt = time.Now()
		recovered++
	}
	return recovered, nil
}

// stubResolver returns fixed rates per item, or a rate-resolution error for
// unknown items.
type stubResolver struct {
	rates map[string]decimal.Decimal
}

func (s *stubResolver) ResolveRate(_ context.Context, itemID string, _ RateContext) (decimal.Decimal, error) {
	rate, ok := s.rates[itemID]
	if !ok {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution,
			fmt.Sprintf("no rate for item %s", itemID), nil)
	}
	return rate, nil
}

// countingInvoker records reschedule requests made by a processor.
type countingInvoker struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingInvoker) RequestInvocation(_ context.Context, queueName string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, queueName)
	return nil
}

func (c *countingInvoker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
