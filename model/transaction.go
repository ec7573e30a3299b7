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

	"github.com/shopspring/decimal"
)

// Transaction is the receiving-transaction descriptor handed to the engine by
// a collaborator. The engine reads it and never writes it back.
type Transaction struct {
	ID            int64                  `json:"-"`
	TransactionID string                 `json:"id"`
	LocationKey   string                 `json:"location_key"`
	CurrencyKey   string                 `json:"currency_key"`
	Lines         []TransactionLine      `json:"lines"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

// TransactionLine is one item line on the receiving transaction. Rate may be
// zero when the document carries no explicit unit price; the rate resolver
// fills the gap for percentage-based allocation.
type TransactionLine struct {
	LineID   string          `json:"line_id"`
	ItemID   string          `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
}

// Value returns quantity x rate, the line's monetary value when a rate is
// present.
func (l TransactionLine) Value() decimal.Decimal {
	return l.Quantity.Mul(l.Rate)
}

// HasRate reports whether the line carries its own usable unit price.
func (l TransactionLine) HasRate() bool {
	return !l.Rate.IsZero()
}

func (t *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// RateStrategy selects how a missing unit cost is resolved for an item.
type RateStrategy string

const (
	// StrategyLocationAverage looks up the item's average cost at the
	// transaction's originating location.
	StrategyLocationAverage RateStrategy = "location_average"
	// StrategySourceDocument looks up the unit cost recorded on the document
	// that originally produced the inventory, e.g. the receipt preceding a
	// transfer.
	StrategySourceDocument RateStrategy = "source_document"
)

// ItemCostProfile is the per-item configuration consumed by the rate
// resolver.
type ItemCostProfile struct {
	ItemID   string       `json:"item_id"`
	Strategy RateStrategy `json:"strategy"`
}
