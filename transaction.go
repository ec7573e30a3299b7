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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/landedhq/landed/model"
)

// RecordTransaction stores a receiving transaction and its lines.
func (l *Landed) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "RecordTransaction")
	defer span.End()

	recorded, err := l.datasource.RecordTransaction(ctx, txn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record transaction")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("transaction.id", recorded.TransactionID),
		attribute.Int("transaction.lines", len(recorded.Lines)),
	)
	span.AddEvent("Transaction recorded")
	return recorded, nil
}

// GetTransaction retrieves a transaction with its lines.
func (l *Landed) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "GetTransaction")
	defer span.End()

	txn, err := l.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get transaction")
		return nil, err
	}
	return txn, nil
}
