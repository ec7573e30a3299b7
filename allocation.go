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
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// contribKey groups contributions per (transaction line, cost category).
// FLAT_AMOUNT contributions use an empty lineID and attach to the
// transaction as a whole.
type contribKey struct {
	lineID   string
	category model.CostCategory
}

// Allocate is the allocation engine: a pure function of the template, the
// transaction lines and the resolver. Amounts accumulate at full precision
// and are rounded half-to-even at currency precision only when the final
// result lines are produced, so totals do not depend on line ordering.
// Re-running with identical inputs yields identical output.
func Allocate(ctx context.Context, template model.CostTemplate, txn *model.Transaction, resolver RateResolver) (*model.AllocationResult, error) {
	_, span := tracer.Start(ctx, "Allocating Landed Cost")
	defer span.End()

	if err := template.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "Malformed cost template", err)
	}

	result := &model.AllocationResult{
		TransactionID: txn.TransactionID,
		TemplateID:    template.TemplateID,
	}

	rc := RateContext{
		LocationKey:      txn.LocationKey,
		SourceDocumentID: sourceDocumentOf(txn),
	}

	// Zero or negative quantities are rejected per line, not per run.
	lines := make([]model.TransactionLine, 0, len(txn.Lines))
	for _, line := range txn.Lines {
		if !line.Quantity.IsPositive() {
			result.Warnings = append(result.Warnings, model.RateWarning{
				LineID: line.LineID,
				ItemID: line.ItemID,
				Reason: fmt.Sprintf("line rejected: quantity %s is not positive", line.Quantity),
			})
			continue
		}
		lines = append(lines, line)
	}

	totals := make(map[contribKey]decimal.Decimal)
	var order []contribKey
	add := func(key contribKey, amount decimal.Decimal) {
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] = totals[key].Add(amount)
	}

	// unitRate returns the line's own rate when present, otherwise the
	// resolver's. A resolution failure degrades the contribution to zero and
	// is warned once per line.
	warned := make(map[string]bool)
	unitRate := func(line model.TransactionLine) (decimal.Decimal, bool) {
		if line.HasRate() {
			return line.Rate, true
		}
		rate, err := resolver.ResolveRate(ctx, line.ItemID, rc)
		if err != nil {
			if !warned[line.LineID] {
				warned[line.LineID] = true
				result.Warnings = append(result.Warnings, model.RateWarning{
					LineID: line.LineID,
					ItemID: line.ItemID,
					Reason: err.Error(),
				})
			}
			return decimal.Zero, false
		}
		return rate, true
	}

	for _, detail := range template.Details {
		switch m := detail.Method.(type) {
		case model.PerQuantity:
			for _, line := range lines {
				add(contribKey{line.LineID, detail.Category}, m.Factor.Mul(line.Quantity))
			}
		case model.FlatAmount:
			// Once per detail, never multiplied across lines. Callers wanting
			// distribution divide the factor before building the template.
			add(contribKey{"", detail.Category}, m.Factor)
		case model.Percentage:
			for _, line := range lines {
				rate, ok := unitRate(line)
				if !ok {
					continue
				}
				add(contribKey{line.LineID, detail.Category}, percentageOf(m.Factor, line.Quantity, rate))
			}
		case model.ItemConsumption:
			consumed := decimal.Zero
			for _, line := range lines {
				switch m.SubMethod {
				case model.MethodPercentage:
					rate, ok := unitRate(line)
					if !ok {
						continue
					}
					add(contribKey{line.LineID, detail.Category}, percentageOf(m.Factor, line.Quantity, rate))
					consumed = consumed.Add(m.Factor.Shift(-2).Mul(line.Quantity))
				default:
					add(contribKey{line.LineID, detail.Category}, m.Factor.Mul(line.Quantity))
					consumed = consumed.Add(m.Factor.Mul(line.Quantity))
				}
			}
			if !consumed.IsZero() {
				result.Consumptions = append(result.Consumptions, model.ConsumptionRequest{
					TransactionID: txn.TransactionID,
					TemplateID:    template.TemplateID,
					ItemID:        m.ConsumptionItemID,
					Quantity:      consumed,
					LocationKey:   txn.LocationKey,
				})
			}
		}
	}

	for _, key := range order {
		result.Lines = append(result.Lines, model.ResultLine{
			TransactionID: txn.TransactionID,
			TemplateID:    template.TemplateID,
			LineID:        key.lineID,
			Category:      key.category,
			Amount:        model.RoundToCurrency(totals[key], txn.CurrencyKey),
		})
	}

	return result, nil
}

// percentageOf computes (factor/100) x quantity x rate at full precision.
// Shift keeps the division by 100 exact.
func percentageOf(factor, quantity, rate decimal.Decimal) decimal.Decimal {
	return factor.Shift(-2).Mul(quantity).Mul(rate)
}

func sourceDocumentOf(txn *model.Transaction) string {
	if txn.MetaData == nil {
		return ""
	}
	if doc, ok := txn.MetaData["source_document_id"].(string); ok {
		return doc
	}
	return ""
}

// AllocateTransaction allocates landed cost for a recorded transaction.
// Small transactions run inline when the caller's execution budget allows;
// larger ones, and any call arriving with the budget already near the
// checkpoint floor, fan out to the work queue and return the created
// entries instead of a result.
func (l *Landed) AllocateTransaction(ctx context.Context, transactionID string) (*model.AllocationResult, []*model.QueueEntry, error) {
	ctx, span := tracer.Start(ctx, "Allocating Transaction")
	defer span.End()

	txn, err := l.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	template, err := l.datasource.GetCostTemplateForKey(ctx, txn.LocationKey, txn.CurrencyKey)
	if err != nil {
		return nil, nil, err
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, nil, err
	}

	small := len(txn.Lines) <= cnf.Allocation.InlineLineThreshold
	budgeted := DeadlineBudget{}.RemainingUnits(ctx) >= cnf.Queue.BudgetThreshold
	if small && budgeted {
		result, err := l.runAllocation(ctx, *template, txn)
		return result, nil, err
	}

	entries, err := l.EnqueueAllocation(ctx, txn, *template)
	if err != nil {
		return nil, nil, err
	}
	return nil, entries, nil
}

// runAllocation executes the engine and persists its output with replace
// semantics, retrying transient write failures with exponential backoff.
func (l *Landed) runAllocation(ctx context.Context, template model.CostTemplate, txn *model.Transaction) (*model.AllocationResult, error) {
	l.executePreHooks(ctx, txn)

	resolver := NewRunResolver(l.datasource, l.cache)
	result, err := Allocate(ctx, template, txn, resolver)
	if err != nil {
		return nil, err
	}

	for _, warning := range result.Warnings {
		logrus.Warnf("allocation warning on %s line %s (item %s): %s",
			txn.TransactionID, warning.LineID, warning.ItemID, warning.Reason)
	}

	if err := l.persistResult(ctx, result); err != nil {
		return nil, err
	}

	l.executePostHooks(ctx, txn.TransactionID, result)
	return result, nil
}

// executePreHooks notifies subscribers an allocation run is starting. Hook
// failures never affect the run.
func (l *Landed) executePreHooks(ctx context.Context, txn *model.Transaction) {
	if l.hooks == nil {
		return
	}
	if err := l.hooks.ExecutePreHooks(ctx, txn.TransactionID, txn); err != nil {
		logrus.Warnf("pre-allocation hooks for %s: %v", txn.TransactionID, err)
	}
}

// executePostHooks hands the persisted result, warnings and consumption
// requests to subscribers. The inventory system that owns on-hand stock
// picks up consumption requests here.
func (l *Landed) executePostHooks(ctx context.Context, transactionID string, result *model.AllocationResult) {
	if l.hooks == nil {
		return
	}
	if err := l.hooks.ExecutePostHooks(ctx, transactionID, result); err != nil {
		logrus.Warnf("post-allocation hooks for %s: %v", transactionID, err)
	}
}

func (l *Landed) persistResult(ctx context.Context, result *model.AllocationResult) error {
	operation := func() error {
		err := l.datasource.ReplaceAllocationResults(ctx, result)
		if err == nil {
			return nil
		}
		if apierror.CodeOf(err) == apierror.ErrTransient {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}

// GetAllocation returns the persisted result set for a transaction under the
// template applicable to it.
func (l *Landed) GetAllocation(ctx context.Context, transactionID string) (*model.AllocationResult, error) {
	txn, err := l.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	template, err := l.datasource.GetCostTemplateForKey(ctx, txn.LocationKey, txn.CurrencyKey)
	if err != nil {
		return nil, err
	}
	return l.datasource.GetAllocationResults(ctx, transactionID, template.TemplateID)
}

// processAllocationEntry is the queue task body for allocation entries. The
// frozen template snapshot from the payload drives the run, so a retried
// entry re-derives the same results regardless of template edits since
// enqueue.
func (l *Landed) processAllocationEntry(ctx context.Context, entry *model.QueueEntry, budget BudgetProbe, threshold int64) error {
	var task model.AllocationTask
	if err := json.Unmarshal(entry.Payload, &task); err != nil {
		return apierror.NewAPIError(apierror.ErrValidation, "Malformed allocation payload", err)
	}
	if task.Snapshot.SchemaVersion != model.TemplateSnapshotSchemaVersion {
		return apierror.NewAPIError(apierror.ErrValidation,
			fmt.Sprintf("unsupported template snapshot schema version %d", task.Snapshot.SchemaVersion), nil)
	}

	txn := &model.Transaction{
		TransactionID: task.TransactionID,
		LocationKey:   task.LocationKey,
		CurrencyKey:   task.CurrencyKey,
		Lines:         task.Lines,
	}
	if task.SourceDocumentID != "" {
		txn.MetaData = map[string]interface{}{"source_document_id": task.SourceDocumentID}
	}

	l.executePreHooks(ctx, txn)

	batchTemplate := templateForBatch(task.Snapshot.Template, task.Batch)
	result := &model.AllocationResult{
		TransactionID: task.TransactionID,
		TemplateID:    batchTemplate.TemplateID,
		Batch:         task.Batch,
	}
	// A later batch can be left with nothing to compute when every detail
	// was transaction-scoped; its replace still clears stale rows.
	if len(batchTemplate.Details) > 0 {
		resolver := NewRunResolver(l.datasource, l.cache)
		allocated, err := Allocate(ctx, batchTemplate, txn, resolver)
		if err != nil {
			return err
		}
		allocated.Batch = task.Batch
		result = allocated
	}

	// The persist is the expensive tail of the entry; checkpoint here rather
	// than start a write with no budget to finish it.
	if budget != nil && budget.RemainingUnits(ctx) < threshold {
		return apierror.NewAPIError(apierror.ErrResourceExhausted,
			"Execution budget exhausted before persisting allocation results", nil)
	}

	if err := l.persistResult(ctx, result); err != nil {
		return err
	}

	l.executePostHooks(ctx, task.TransactionID, result)

	logrus.Infof("allocated %d result lines for transaction %s (entry %s)",
		len(result.Lines), task.TransactionID, entry.EntryID)
	return nil
}

// templateForBatch returns the template a fan-out batch should run under.
// Flat amounts attach to the transaction, not to any line, so only the first
// batch carries them; later batches would double-charge the same detail.
func templateForBatch(template model.CostTemplate, batch int) model.CostTemplate {
	if batch <= 1 {
		return template
	}
	details := make([]model.TemplateDetail, 0, len(template.Details))
	for _, detail := range template.Details {
		if detail.Method.Kind() == model.MethodFlatAmount {
			continue
		}
		details = append(details, detail)
	}
	template.Details = details
	return template
}

// warmupDelay spaces the enqueue from its trigger so the insert commits
// before the first claim attempt.
const warmupDelay = 2 * time.Second
