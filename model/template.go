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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CostCategory identifies the ledger bucket a cost contribution lands in.
// The engine treats it as opaque and passes it through to result lines.
type CostCategory string

// MethodKind names an allocation method on the wire and in storage.
type MethodKind string

const (
	MethodPerQuantity     MethodKind = "PER_QUANTITY"
	MethodFlatAmount      MethodKind = "FLAT_AMOUNT"
	MethodPercentage      MethodKind = "PERCENTAGE"
	MethodItemConsumption MethodKind = "ITEM_CONSUMPTION"
)

// AllocationMethod is the closed set of ways a template detail can compute a
// cost contribution. Each variant carries only the fields it needs, so an
// ITEM_CONSUMPTION line without a consumption item cannot be represented
// once it has been decoded.
type AllocationMethod interface {
	Kind() MethodKind
	sealedMethod()
}

// PerQuantity allocates Factor currency units per unit of line quantity.
type PerQuantity struct {
	Factor decimal.Decimal `json:"factor"`
}

func (PerQuantity) Kind() MethodKind { return MethodPerQuantity }
func (PerQuantity) sealedMethod()    {}

// FlatAmount allocates Factor exactly once per template detail, regardless of
// how many transaction lines are present. Callers that want the amount spread
// across lines divide Factor before building the template.
type FlatAmount struct {
	Factor decimal.Decimal `json:"factor"`
}

func (FlatAmount) Kind() MethodKind { return MethodFlatAmount }
func (FlatAmount) sealedMethod()    {}

// Percentage allocates Factor percentage points of each line's value. Factor
// is expressed in points: 12.5 means 12.5%.
type Percentage struct {
	Factor decimal.Decimal `json:"factor"`
}

func (Percentage) Kind() MethodKind { return MethodPercentage }
func (Percentage) sealedMethod()    {}

// ItemConsumption computes its monetary value exactly like the configured
// sub-method and additionally asks the caller to decrement on-hand stock of
// ConsumptionItemID. The engine never mutates inventory itself.
type ItemConsumption struct {
	Factor            decimal.Decimal `json:"factor"`
	SubMethod         MethodKind      `json:"sub_method"`
	ConsumptionItemID string          `json:"consumption_item_id"`
}

func (ItemConsumption) Kind() MethodKind { return MethodItemConsumption }
func (ItemConsumption) sealedMethod()    {}

// TemplateDetail is one allocation rule inside a cost template.
type TemplateDetail struct {
	DetailID string
	Category CostCategory
	Method   AllocationMethod
}

// detailEnvelope is the storage/wire form of a TemplateDetail. A single flat
// envelope keeps the JSON stable across method kinds.
type detailEnvelope struct {
	DetailID          string          `json:"detail_id"`
	Category          CostCategory    `json:"category"`
	Method            MethodKind      `json:"method"`
	Factor            decimal.Decimal `json:"factor"`
	SubMethod         MethodKind      `json:"sub_method,omitempty"`
	ConsumptionItemID string          `json:"consumption_item_id,omitempty"`
}

func (d TemplateDetail) MarshalJSON() ([]byte, error) {
	env := detailEnvelope{DetailID: d.DetailID, Category: d.Category}
	switch m := d.Method.(type) {
	case PerQuantity:
		env.Method, env.Factor = MethodPerQuantity, m.Factor
	case FlatAmount:
		env.Method, env.Factor = MethodFlatAmount, m.Factor
	case Percentage:
		env.Method, env.Factor = MethodPercentage, m.Factor
	case ItemConsumption:
		env.Method, env.Factor = MethodItemConsumption, m.Factor
		env.SubMethod = m.SubMethod
		env.ConsumptionItemID = m.ConsumptionItemID
	default:
		return nil, fmt.Errorf("template detail %s has no allocation method", d.DetailID)
	}
	return json.Marshal(env)
}

func (d *TemplateDetail) UnmarshalJSON(data []byte) error {
	var env detailEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	method, err := methodFromEnvelope(env)
	if err != nil {
		return err
	}
	d.DetailID = env.DetailID
	d.Category = env.Category
	d.Method = method
	return nil
}

func methodFromEnvelope(env detailEnvelope) (AllocationMethod, error) {
	switch env.Method {
	case MethodPerQuantity:
		return PerQuantity{Factor: env.Factor}, nil
	case MethodFlatAmount:
		return FlatAmount{Factor: env.Factor}, nil
	case MethodPercentage:
		return Percentage{Factor: env.Factor}, nil
	case MethodItemConsumption:
		if env.ConsumptionItemID == "" {
			return nil, fmt.Errorf("ITEM_CONSUMPTION detail %s is missing its consumption item", env.DetailID)
		}
		sub := env.SubMethod
		if sub == "" {
			sub = MethodPerQuantity
		}
		if sub != MethodPerQuantity && sub != MethodPercentage {
			return nil, fmt.Errorf("ITEM_CONSUMPTION detail %s has unsupported sub-method %q", env.DetailID, sub)
		}
		return ItemConsumption{Factor: env.Factor, SubMethod: sub, ConsumptionItemID: env.ConsumptionItemID}, nil
	default:
		return nil, fmt.Errorf("unknown allocation method %q on detail %s", env.Method, env.DetailID)
	}
}

// CostTemplate is a named, read-only set of allocation rules applicable to a
// location/currency combination. It never mutates during an allocation run.
type CostTemplate struct {
	TemplateID  string           `json:"template_id"`
	Name        string           `json:"name"`
	LocationKey string           `json:"location_key"`
	CurrencyKey string           `json:"currency_key"`
	Details     []TemplateDetail `json:"details"`
	CreatedAt   time.Time        `json:"created_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// TemplateSnapshot freezes a template at enqueue time so that a retried queue
// entry re-derives byte-identical results even if the template is edited
// afterwards. SchemaVersion guards future shape changes of the snapshot.
type TemplateSnapshot struct {
	SchemaVersion int          `json:"schema_version"`
	CapturedAt    time.Time    `json:"captured_at"`
	Template      CostTemplate `json:"template"`
}

const TemplateSnapshotSchemaVersion = 1

// SnapshotTemplate captures an immutable copy of the template.
func SnapshotTemplate(template CostTemplate, at time.Time) TemplateSnapshot {
	return TemplateSnapshot{
		SchemaVersion: TemplateSnapshotSchemaVersion,
		CapturedAt:    at,
		Template:      template,
	}
}

// Validate checks the structural invariants of a template. A violation means
// the template is misconfigured, not that the transaction data is bad, so
// callers treat it as fatal for the whole allocation run.
func (t CostTemplate) Validate() error {
	if len(t.Details) == 0 {
		return fmt.Errorf("template %s has no detail lines", t.TemplateID)
	}
	for _, d := range t.Details {
		if d.Category == "" {
			return fmt.Errorf("template %s detail %s has no cost category", t.TemplateID, d.DetailID)
		}
		switch m := d.Method.(type) {
		case PerQuantity, FlatAmount, Percentage:
		case ItemConsumption:
			if m.ConsumptionItemID == "" {
				return fmt.Errorf("template %s detail %s: ITEM_CONSUMPTION requires a consumption item", t.TemplateID, d.DetailID)
			}
			if m.SubMethod != MethodPerQuantity && m.SubMethod != MethodPercentage {
				return fmt.Errorf("template %s detail %s: unsupported sub-method %q", t.TemplateID, d.DetailID, m.SubMethod)
			}
		case nil:
			return fmt.Errorf("template %s detail %s has no allocation method", t.TemplateID, d.DetailID)
		default:
			return fmt.Errorf("template %s detail %s has unknown allocation method", t.TemplateID, d.DetailID)
		}
	}
	return nil
}
