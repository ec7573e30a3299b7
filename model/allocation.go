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
	"time"

	"github.com/shopspring/decimal"
)

// ResultLine is one allocated cost amount, keyed by the transaction line it
// came from and the cost category it lands in. LineID is empty for
// FLAT_AMOUNT contributions, which attach to the transaction as a whole.
// Amount is rounded to currency precision; everything upstream of it is
// computed at full precision.
type ResultLine struct {
	ResultID      string          `json:"result_id"`
	TransactionID string          `json:"transaction_id"`
	TemplateID    string          `json:"template_id"`
	LineID        string          `json:"line_id,omitempty"`
	Category      CostCategory    `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ConsumptionRequest asks the caller's inventory subsystem to decrement
// on-hand quantity of an item. The engine emits these for ITEM_CONSUMPTION
// details and never executes them itself.
type ConsumptionRequest struct {
	RequestID     string          `json:"request_id"`
	TransactionID string          `json:"transaction_id"`
	TemplateID    string          `json:"template_id"`
	ItemID        string          `json:"item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	LocationKey   string          `json:"location_key"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RateWarning records a non-fatal rate-resolution failure. The affected
// line's percentage contribution degraded to zero; the run carried on.
type RateWarning struct {
	LineID string `json:"line_id"`
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// AllocationResult is everything one allocation run produces. For a given
// (transaction, template) pair the result set replaces any previous one, so
// re-running on retry can never double-count.
type AllocationResult struct {
	TransactionID string `json:"transaction_id"`
	TemplateID    string `json:"template_id"`
	// Batch scopes replace semantics: zero replaces every stored row for the
	// transaction/template pair, a positive value replaces only the rows that
	// batch produced earlier.
	Batch        int                  `json:"batch,omitempty"`
	Lines        []ResultLine         `json:"lines"`
	Consumptions []ConsumptionRequest `json:"consumptions,omitempty"`
	Warnings     []RateWarning        `json:"warnings,omitempty"`
}

// currencyPrecision lists decimal places for currencies that deviate from
// the common two. Unlisted currencies round to two places.
var currencyPrecision = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// Precision returns the number of decimal places for a currency key.
func Precision(currency string) int32 {
	if p, ok := currencyPrecision[currency]; ok {
		return p
	}
	return 2
}

// RoundToCurrency rounds a full-precision amount to the currency's precision
// using round-half-to-even, keeping totals stable regardless of line order.
func RoundToCurrency(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(Precision(currency))
}
