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
	"strconv"
	"time"

	model2 "github.com/landedhq/landed/api/model"
	"github.com/landedhq/landed/model"

	"github.com/gin-gonic/gin"
)

// GetQueueEntries lists entries on a queue, optionally filtered by status,
// e.g. GET /queues/landed:allocation_1/entries?status=FAILED&limit=50.
func (a Api) GetQueueEntries(c *gin.Context) {
	name, passed := c.Params.Get("name")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required. pass the queue name in the route /:name"})
		return
	}

	status := model.EntryStatus(c.Query("status"))
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	resp, err := a.landed.Queue().Entries(c.Request.Context(), name, status, limit)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetQueueEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.landed.Queue().GetEntry(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RequeueDeadLetter moves a FAILED entry back to PENDING with a fresh retry
// budget.
func (a Api) RequeueDeadLetter(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.RequeueEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Note = ""
	}
	if req.Note == "" {
		req.Note = "manually requeued"
	}

	entry, err := a.landed.Queue().RequeueDeadLetter(c.Request.Context(), id, req.Note)
	if err != nil {
		handleError(c, err)
		return
	}

	if err := a.landed.Scheduler().RequestInvocation(c.Request.Context(), entry.QueueName, 0); err != nil {
		c.JSON(http.StatusOK, gin.H{"entry": entry, "warning": "entry requeued but processor trigger failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// RecoverStuckEntries runs an immediate sweep of entries stranded in
// PROCESSING by a dead processor.
func (a Api) RecoverStuckEntries(c *gin.Context) {
	var req model2.RecoverStuckEntries
	if err := c.ShouldBindJSON(&req); err != nil {
		req.ThresholdMinutes = 0
	}

	threshold := time.Duration(req.ThresholdMinutes) * time.Minute
	recovered, err := a.landed.RecoverStuckEntries(c.Request.Context(), threshold)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": recovered})
}
