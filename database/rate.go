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

	"github.com/shopspring/decimal"

	"github.com/landedhq/landed/internal/apierror"
	"github.com/landedhq/landed/model"
)

// GetItemCostProfile returns the per-item rate strategy configuration.
// Items without a profile default to the location-average strategy.
func (d Datasource) GetItemCostProfile(ctx context.Context, itemID string) (*model.ItemCostProfile, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT item_id, strategy
		FROM landed.item_cost_profiles
		WHERE item_id = $1
	`, itemID)

	profile := model.ItemCostProfile{}
	err := row.Scan(&profile.ItemID, &profile.Strategy)
	if err != nil {
		if err == sql.ErrNoRows {
			return &model.ItemCostProfile{ItemID: itemID, Strategy: model.StrategyLocationAverage}, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve item cost profile", err)
	}
	return &profile, nil
}

// GetLocationAverageCost looks up the item's average cost at a location.
func (d Datasource) GetLocationAverageCost(ctx context.Context, itemID, locationKey string) (decimal.Decimal, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT average_cost
		FROM landed.item_location_costs
		WHERE item_id = $1 AND location_key = $2
	`, itemID, locationKey)

	var cost decimal.Decimal
	err := row.Scan(&cost)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution, "No average cost recorded for item at location",
				map[string]string{"item_id": itemID, "location_key": locationKey})
		}
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve location average cost", err)
	}
	return cost, nil
}

// GetSourceDocumentCost looks up the unit cost recorded on the document that
// originally produced the inventory being processed.
func (d Datasource) GetSourceDocumentCost(ctx context.Context, itemID, documentID string) (decimal.Decimal, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT unit_cost
		FROM landed.item_source_costs
		WHERE item_id = $1 AND document_id = $2
	`, itemID, documentID)

	var cost decimal.Decimal
	err := row.Scan(&cost)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrRateResolution, "No unit cost recorded on source document",
				map[string]string{"item_id": itemID, "document_id": documentID})
		}
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve source document cost", err)
	}
	return cost, nil
}
