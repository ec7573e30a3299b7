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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// RecordTransaction stores a receiving-transaction descriptor and its lines.
// Lines get generated ids when the caller supplied none, so queue payloads
// and result lines can reference them.
func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	if txn.TransactionID == "" {
		txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	}
	txn.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO landed.transactions (transaction_id, location_key, currency_key, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, txn.TransactionID, txn.LocationKey, txn.CurrencyKey, metaDataJSON, txn.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Transaction already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to record transaction", err)
	}

	for i := range txn.Lines {
		if txn.Lines[i].LineID == "" {
			txn.Lines[i].LineID = model.GenerateUUIDWithSuffix("line")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO landed.transaction_lines (line_id, transaction_id, item_id, quantity, rate)
			VALUES ($1, $2, $3, $4, $5)
		`, txn.Lines[i].LineID, txn.TransactionID, txn.Lines[i].ItemID, txn.Lines[i].Quantity, txn.Lines[i].Rate)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to record transaction line", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrTransient, "Failed to commit transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT transaction_id, location_key, currency_key, meta_data, created_at
		FROM landed.transactions
		WHERE transaction_id = $1
	`, id)

	txn := model.Transaction{}
	var metaDataJSON []byte
	err := row.Scan(&txn.TransactionID, &txn.LocationKey, &txn.CurrencyKey, &metaDataJSON, &txn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Transaction not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT line_id, item_id, quantity, rate
		FROM landed.transaction_lines
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		line := model.TransactionLine{}
		if err := rows.Scan(&line.LineID, &line.ItemID, &line.Quantity, &line.Rate); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction line", err)
		}
		txn.Lines = append(txn.Lines, line)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transaction lines", err)
	}

	return &txn, nil
}
