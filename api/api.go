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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/landedhq/landed"
	"github.com/landedhq/landed/api/middleware"
	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/internal/apierror"
)

type Api struct {
	landed *landed.Landed
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/templates", a.CreateCostTemplate)
	router.GET("/templates/:id", a.GetCostTemplate)
	router.GET("/templates", a.GetCostTemplateForKey)

	router.POST("/transactions", a.RecordTransaction)
	router.GET("/transactions/:id", a.GetTransaction)

	router.POST("/transactions/:id/allocate", a.AllocateTransaction)
	router.GET("/transactions/:id/allocations", a.GetAllocation)

	router.POST("/hooks", a.RegisterHook)
	router.GET("/hooks", a.ListHooks)
	router.GET("/hooks/:id", a.GetHook)
	router.PUT("/hooks/:id", a.UpdateHook)
	router.DELETE("/hooks/:id", a.DeleteHook)

	router.GET("/queues/:name/entries", a.GetQueueEntries)
	router.GET("/queue-entries/:id", a.GetQueueEntry)
	router.POST("/queue-entries/:id/requeue", a.RequeueDeadLetter)
	router.POST("/queues/recover-stuck", a.RecoverStuckEntries)

	return a.router
}

func NewAPI(l *landed.Landed) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware(conf))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{landed: l, router: r}
}

// handleError maps service errors onto HTTP statuses, keeping the coded
// detail payload when the error carries one.
func handleError(c *gin.Context, err error) {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{
			"error":   apiErr.Message,
			"code":    apiErr.Code,
			"details": apiErr.Details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
