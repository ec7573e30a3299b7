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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

func TestRecordTransactionWritesLinesInOneTx(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO landed.transactions")).
		WithArgs(sqlmock.AnyArg(), "WH-EAST", "USD", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO landed.transaction_lines")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "SKU-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO landed.transaction_lines")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "SKU-2", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	recorded, err := ds.RecordTransaction(context.Background(), &model.Transaction{
		LocationKey: "WH-EAST",
		CurrencyKey: "USD",
		Lines: []model.TransactionLine{
			{ItemID: "SKU-1", Quantity: decimal.RequireFromString("10"), Rate: decimal.RequireFromString("4.00")},
			{ItemID: "SKU-2", Quantity: decimal.RequireFromString("3")},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, recorded.TransactionID, "txn_")
	assert.Contains(t, recorded.Lines[0].LineID, "line_")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionDuplicateConflicts(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO landed.transactions")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := ds.RecordTransaction(context.Background(), &model.Transaction{
		TransactionID: "txn_dup",
		LocationKey:   "WH-EAST",
		CurrencyKey:   "USD",
	})
	require.Error(t, err)
	assert.Equal(t, apierror.ErrConflict, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionLoadsLines(t *testing.T) {
	ds, mock := newTestDatasource(t)

	txnRows := sqlmock.NewRows([]string{
		"transaction_id", "location_key", "currency_key", "meta_data", "created_at",
	}).AddRow("txn_1", "WH-EAST", "USD", []byte(`{"source_document_id":"doc_9"}`), time.Now())
	lineRows := sqlmock.NewRows([]string{"line_id", "item_id", "quantity", "rate"}).
		AddRow("l1", "SKU-1", "10", "4.00").
		AddRow("l2", "SKU-2", "3", "0")

	mock.ExpectQuery(regexp.QuoteMeta("FROM landed.transactions")).
		WithArgs("txn_1").
		WillReturnRows(txnRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM landed.transaction_lines")).
		WithArgs("txn_1").
		WillReturnRows(lineRows)

	txn, err := ds.GetTransaction(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "doc_9", txn.MetaData["source_document_id"])
	require.Len(t, txn.Lines, 2)
	assert.True(t, txn.Lines[0].HasRate())
	assert.False(t, txn.Lines[1].HasRate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemCostProfileDefaultsToLocationAverage(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM landed.item_cost_profiles")).
		WithArgs("SKU-UNCONFIGURED").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "strategy"}))

	profile, err := ds.GetItemCostProfile(context.Background(), "SKU-UNCONFIGURED")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyLocationAverage, profile.Strategy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocationAverageCostMissingIsRateResolution(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM landed.item_location_costs")).
		WithArgs("SKU-1", "WH-WEST").
		WillReturnRows(sqlmock.NewRows([]string{"average_cost"}))

	_, err := ds.GetLocationAverageCost(context.Background(), "SKU-1", "WH-WEST")
	require.Error(t, err)
	assert.Equal(t, apierror.ErrRateResolution, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
