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

// CreateCostTemplate is the request body for registering a cost template.
type CreateCostTemplate struct {
	Name        string                 `json:"name"`
	LocationKey string                 `json:"location_key"`
	CurrencyKey string                 `json:"currency_key"`
	Details     []TemplateDetail       `json:"details"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// TemplateDetail is the flat wire form of one allocation rule. The method
// field decides which of the remaining fields are meaningful.
type TemplateDetail struct {
	Category          string          `json:"category"`
	Method            string          `json:"method"`
	Factor            decimal.Decimal `json:"factor"`
	SubMethod         string          `json:"sub_method"`
	ConsumptionItemID string          `json:"consumption_item_id"`
}

func (t *CreateCostTemplate) ToCostTemplate() model.CostTemplate {
	details := make([]model.TemplateDetail, 0, len(t.Details))
	for _, d := range t.Details {
		details = append(details, model.TemplateDetail{
			Category: model.CostCategory(d.Category),
			Method:   d.toMethod(),
		})
	}
	return model.CostTemplate{
		Name:        t.Name,
		LocationKey: t.LocationKey,
		CurrencyKey: t.CurrencyKey,
		Details:     details,
		MetaData:    t.MetaData,
	}
}

func (d TemplateDetail) toMethod() model.AllocationMethod {
	switch model.MethodKind(d.Method) {
	case model.MethodPerQuantity:
		return model.PerQuantity{Factor: d.Factor}
	case model.MethodFlatAmount:
		return model.FlatAmount{Factor: d.Factor}
	case model.MethodPercentage:
		return model.Percentage{Factor: d.Factor}
	case model.MethodItemConsumption:
		sub := model.MethodKind(d.SubMethod)
		if sub == "" {
			sub = model.MethodPerQuantity
		}
		return model.ItemConsumption{
			Factor:            d.Factor,
			SubMethod:         sub,
			ConsumptionItemID: d.ConsumptionItemID,
		}
	default:
		return nil
	}
}
