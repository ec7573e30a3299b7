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

func (d Datasource) CreateCostTemplate(ctx context.Context, tpl model.CostTemplate) (model.CostTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrValidation, "Invalid cost template", err)
	}

	detailsJSON, err := json.Marshal(tpl.Details)
	if err != nil {
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal template details", err)
	}
	metaDataJSON, err := json.Marshal(tpl.MetaData)
	if err != nil {
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tpl.TemplateID = model.GenerateUUIDWithSuffix("ct")
	tpl.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO landed.cost_templates (template_id, name, location_key, currency_key, details, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tpl.TemplateID, tpl.Name, tpl.LocationKey, tpl.CurrencyKey, detailsJSON, metaDataJSON, tpl.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrConflict, "A template already covers this location and currency", err)
			default:
				return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.CostTemplate{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create cost template", err)
	}

	return tpl, nil
}

func (d Datasource) GetCostTemplate(ctx context.Context, templateID string) (*model.CostTemplate, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT template_id, name, location_key, currency_key, details, meta_data, created_at
		FROM landed.cost_templates
		WHERE template_id = $1
	`, templateID)

	return scanCostTemplate(row)
}

// GetCostTemplateForKey resolves the template applicable to a
// location/currency combination.
func (d Datasource) GetCostTemplateForKey(ctx context.Context, locationKey, currencyKey string) (*model.CostTemplate, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT template_id, name, location_key, currency_key, details, meta_data, created_at
		FROM landed.cost_templates
		WHERE location_key = $1 AND currency_key = $2
	`, locationKey, currencyKey)

	return scanCostTemplate(row)
}

func scanCostTemplate(row *sql.Row) (*model.CostTemplate, error) {
	tpl := model.CostTemplate{}
	var detailsJSON, metaDataJSON []byte
	err := row.Scan(&tpl.TemplateID, &tpl.Name, &tpl.LocationKey, &tpl.CurrencyKey, &detailsJSON, &metaDataJSON, &tpl.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Cost template not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve cost template", err)
	}

	if err := json.Unmarshal(detailsJSON, &tpl.Details); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "Stored template details are malformed", err)
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &tpl.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return &tpl, nil
}
