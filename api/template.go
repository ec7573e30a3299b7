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
package api

import (
	"net/http"

	model2 "github.com/landedhq/landed/api/model"

	"github.com/gin-gonic/gin"
)

func (a Api) CreateCostTemplate(c *gin.Context) {
	var newTemplate model2.CreateCostTemplate
	if err := c.ShouldBindJSON(&newTemplate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newTemplate.ValidateCreateCostTemplate()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.landed.CreateCostTemplate(c.Request.Context(), newTemplate.ToCostTemplate())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetCostTemplate(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.landed.GetCostTemplate(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCostTemplateForKey resolves the template bound to a location/currency
// pair, e.g. GET /templates?location_key=WH1&currency_key=USD.
func (a Api) GetCostTemplateForKey(c *gin.Context) {
	locationKey := c.Query("location_key")
	currencyKey := c.Query("currency_key")
	if locationKey == "" || currencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_key and currency_key query parameters are required"})
		return
	}

	resp, err := a.landed.GetCostTemplateForKey(c.Request.Context(), locationKey, currencyKey)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
