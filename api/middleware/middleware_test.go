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
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/landedhq/landed/config"
)

func newSecuredRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	conf := &config.Configuration{}
	conf.Server.SecretKey = secret

	r := gin.New()
	r.Use(SecretKeyAuthMiddleware(conf))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecretKeyAuthAcceptsMatchingKey(t *testing.T) {
	r := newSecuredRouter("hunter2")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Landed-Key", "hunter2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecretKeyAuthRejectsMissingOrWrongKey(t *testing.T) {
	r := newSecuredRouter("hunter2")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Landed-Key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecretKeyAuthFailsClosedWithoutConfiguredSecret(t *testing.T) {
	r := newSecuredRouter("")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Landed-Key", "anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimitDisabledWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.Configuration{}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
