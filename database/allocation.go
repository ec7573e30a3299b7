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

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// ReplaceAllocationResults persists one run's output for a (transaction,
// template) key. The previous result set is deleted in the same database
// transaction, so a retried entry overwrites instead of appending and can
// never double-count. A result with Batch zero owns the whole pair and
// clears every stored row; a positive Batch clears only the rows that batch
// produced earlier, leaving sibling batches intact.
func (d Datasource) ReplaceAllocationResults(ctx context.Context, result *model.AllocationResult) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to begin allocation write", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if result.Batch > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM landed.allocation_results
			WHERE transaction_id = $1 AND template_id = $2 AND batch = $3
		`, result.TransactionID, result.TemplateID, result.Batch)
	} else {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM landed.allocation_results
			WHERE transaction_id = $1 AND template_id = $2
		`, result.TransactionID, result.TemplateID)
	}
	if err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to clear prior allocation results", err)
	}
	if result.Batch > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM landed.consumption_requests
			WHERE transaction_id = $1 AND template_id = $2 AND batch = $3
		`, result.TransactionID, result.TemplateID, result.Batch)
	} else {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM landed.consumption_requests
			WHERE transaction_id = $1 AND template_id = $2
		`, result.TransactionID, result.TemplateID)
	}
	if err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to clear prior consumption requests", err)
	}

	now := time.Now()
	for i := range result.Lines {
		line := &result.Lines[i]
		if line.ResultID == "" {
			line.ResultID = model.GenerateUUIDWithSuffix("alloc")
		}
		line.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO landed.allocation_results (result_id, transaction_id, template_id, batch, line_id, category, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, line.ResultID, line.TransactionID, line.TemplateID, result.Batch, line.LineID, line.Category, line.Amount, line.CreatedAt)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrTransient, "Failed to write allocation result line", err)
		}
	}

	for i := range result.Consumptions {
		req := &result.Consumptions[i]
		if req.RequestID == "" {
			req.RequestID = model.GenerateUUIDWithSuffix("cons")
		}
		req.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO landed.consumption_requests (request_id, transaction_id, template_id, batch, item_id, quantity, location_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, req.RequestID, req.TransactionID, req.TemplateID, result.Batch, req.ItemID, req.Quantity, req.LocationKey, req.CreatedAt)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrTransient, "Failed to write consumption request", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrTransient, "Failed to commit allocation results", err)
	}
	return nil
}

// GetAllocationResults returns the persisted result set for a (transaction,
// template) key.
func (d Datasource) GetAllocationResults(ctx context.Context, transactionID, templateID string) (*model.AllocationResult, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT result_id, transaction_id, template_id, line_id, category, amount, created_at
		FROM landed.allocation_results
		WHERE transaction_id = $1 AND template_id = $2
		ORDER BY batch ASC, id ASC
	`, transactionID, templateID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve allocation results", err)
	}
	defer rows.Close()

	result := &model.AllocationResult{TransactionID: transactionID, TemplateID: templateID}
	for rows.Next() {
		line := model.ResultLine{}
		err := rows.Scan(&line.ResultID, &line.TransactionID, &line.TemplateID, &line.LineID, &line.Category, &line.Amount, &line.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan allocation result line", err)
		}
		result.Lines = append(result.Lines, line)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over allocation results", err)
	}

	consRows, err := d.Conn.QueryContext(ctx, `
		SELECT request_id, transaction_id, template_id, item_id, quantity, location_key, created_at
		FROM landed.consumption_requests
		WHERE transaction_id = $1 AND template_id = $2
		ORDER BY batch ASC, id ASC
	`, transactionID, templateID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve consumption requests", err)
	}
	defer consRows.Close()

	for consRows.Next() {
		req := model.ConsumptionRequest{}
		err := consRows.Scan(&req.RequestID, &req.TransactionID, &req.TemplateID, &req.ItemID, &req.Quantity, &req.LocationKey, &req.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan consumption request", err)
		}
		result.Consumptions = append(result.Consumptions, req)
	}
	if err = consRows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over consumption requests", err)
	}

	return result, nil
}
