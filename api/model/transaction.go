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
	"github.com/shopspring/decimal"

	"github.com/landedhq/landed/model"
)

// RecordTransaction is the request body for storing a receiving transaction.
type RecordTransaction struct {
	LocationKey      string                 `json:"location_key"`
	CurrencyKey      string                 `json:"currency_key"`
	SourceDocumentID string                 `json:"source_document_id"`
	Lines            []TransactionLine      `json:"lines"`
	MetaData         map[string]interface{} `json:"meta_data"`
}

// TransactionLine carries one item line. Rate is optional; lines without a
// rate rely on the rate resolver during percentage allocation.
type TransactionLine struct {
	ItemID   string           `json:"item_id"`
	Quantity decimal.Decimal  `json:"quantity"`
	Rate     *decimal.Decimal `json:"rate"`
}

func (t *RecordTransaction) ToTransaction() *model.Transaction {
	lines := make([]model.TransactionLine, 0, len(t.Lines))
	for _, l := range t.Lines {
		line := model.TransactionLine{
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
		}
		if l.Rate != nil {
			line.Rate = *l.Rate
		}
		lines = append(lines, line)
	}

	meta := t.MetaData
	if t.SourceDocumentID != "" {
		if meta == nil {
			meta = make(map[string]interface{})
		}
		meta["source_document_id"] = t.SourceDocumentID
	}

	return &model.Transaction{
		LocationKey: t.LocationKey,
		CurrencyKey: t.CurrencyKey,
		Lines:       lines,
		MetaData:    meta,
	}
}
