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

	"github.com/gin-gonic/gin"
)

// AllocateTransaction costs a recorded transaction. Small documents are
// allocated synchronously and return 200 with the result; larger ones are
// queued and return 202 with the queue entries they fanned out to.
func (a Api) AllocateTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	result, entries, err := a.landed.AllocateTransaction(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	if len(entries) > 0 {
		c.JSON(http.StatusAccepted, gin.H{"entries": entries})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) GetAllocation(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.landed.GetAllocation(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
