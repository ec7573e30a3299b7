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
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/landedhq/landed/model"
)

func knownMethodValidation(d TemplateDetail) validation.RuleFunc {
	return func(value interface{}) error {
		switch model.MethodKind(d.Method) {
		case model.MethodPerQuantity, model.MethodFlatAmount, model.MethodPercentage:
			return nil
		case model.MethodItemConsumption:
			if d.ConsumptionItemID == "" {
				return errors.New("consumption_item_id is required for ITEM_CONSUMPTION")
			}
			sub := model.MethodKind(d.SubMethod)
			if sub != "" && sub != model.MethodPerQuantity && sub != model.MethodPercentage {
				return fmt.Errorf("sub_method %q is not supported; use PER_QUANTITY or PERCENTAGE", d.SubMethod)
			}
			return nil
		default:
			return fmt.Errorf("unknown allocation method %q", d.Method)
		}
	}
}

func (t *CreateCostTemplate) ValidateCreateCostTemplate() error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.LocationKey, validation.Required),
		validation.Field(&t.CurrencyKey, validation.Required),
		validation.Field(&t.Details, validation.Required),
	)
	if err != nil {
		return err
	}
	for i, d := range t.Details {
		err := validation.ValidateStruct(&d,
			validation.Field(&d.Category, validation.Required),
			validation.Field(&d.Method, validation.Required, validation.By(knownMethodValidation(d))),
		)
		if err != nil {
			return fmt.Errorf("details[%d]: %w", i, err)
		}
	}
	return nil
}

// Lines with a non-positive quantity are accepted here; the allocation engine
// skips them with a warning rather than failing the document.
func (t *RecordTransaction) ValidateRecordTransaction() error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.LocationKey, validation.Required),
		validation.Field(&t.CurrencyKey, validation.Required),
		validation.Field(&t.Lines, validation.Required),
	)
	if err != nil {
		return err
	}
	for i, l := range t.Lines {
		err := validation.ValidateStruct(&l,
			validation.Field(&l.ItemID, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("lines[%d]: %w", i, err)
		}
	}
	return nil
}
