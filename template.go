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

// CreateCostTemplate validates and stores a cost template. Only one template
// may exist per (location, currency) pair.
func (l *Landed) CreateCostTemplate(ctx context.Context, template model.CostTemplate) (model.CostTemplate, error) {
	ctx, span := tracer.Start(ctx, "CreateCostTemplate")
	defer span.End()

	created, err := l.datasource.CreateCostTemplate(ctx, template)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create cost template")
		return model.CostTemplate{}, err
	}

	span.SetAttributes(attribute.String("template.id", created.TemplateID))
	span.AddEvent("Cost template created")
	return created, nil
}

// GetCostTemplate retrieves a template by ID.
func (l *Landed) GetCostTemplate(ctx context.Context, templateID string) (*model.CostTemplate, error) {
	ctx, span := tracer.Start(ctx, "GetCostTemplate")
	defer span.End()

	template, err := l.datasource.GetCostTemplate(ctx, templateID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get cost template")
		return nil, err
	}
	return template, nil
}

// GetCostTemplateForKey retrieves the template bound to a location and
// currency pair.
func (l *Landed) GetCostTemplateForKey(ctx context.Context, locationKey, currencyKey string) (*model.CostTemplate, error) {
	ctx, span := tracer.Start(ctx, "GetCostTemplateForKey")
	defer span.End()

	template, err := l.datasource.GetCostTemplateForKey(ctx, locationKey, currencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to resolve cost template for key")
		return nil, err
	}
	return template, nil
}
