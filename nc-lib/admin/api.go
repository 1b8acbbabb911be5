/*
 * Copyright 2012-2020 Jason Woods and contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

// Agent is the running application as seen by the API
type Agent interface {
	Version() string
	Snapshot() *core.Snapshot
	ReloadConfig() error
}

// RecordSource provides the recent records
type RecordSource interface {
	Records(n int) []*metrics.Record
	Latest() *metrics.Record
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	Version  string         `json:"version"`
	Time     time.Time      `json:"time"`
	Pipeline *core.Snapshot `json:"pipeline"`
}

// PluginsResponse is returned by GET /plugins
type PluginsResponse struct {
	Inputs     []string `json:"inputs"`
	Transforms []string `json:"transforms"`
	Outputs    []string `json:"outputs"`
}

// ReloadResponse is returned by POST /reload
type ReloadResponse struct {
	Result string `json:"result"`
}

type api struct {
	agent   Agent
	records RecordSource
}

// newRouter returns the API routes, authenticated with the secret returned
// by the given function
func newRouter(agent Agent, records RecordSource, secret func() string) *gin.Engine {
	a := &api{agent: agent, records: records}

	router := gin.New()
	router.Use(accessLog(), gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		log.Errorf("[admin] Panic serving %s: %v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}))

	router.GET("/version", a.version)

	authed := router.Group("/", requireToken(secret))
	authed.GET("/status", a.status)
	authed.GET("/plugins", a.plugins)
	authed.GET("/records", a.recordList)
	authed.GET("/records/latest", a.latestRecord)
	authed.POST("/reload", a.reload)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})

	return router
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Debugf("[admin] %s %s %s %d %s", c.ClientIP(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started))
	}
}

func (a *api) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": a.agent.Version()})
}

func (a *api) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Version:  a.agent.Version(),
		Time:     time.Now().UTC(),
		Pipeline: a.agent.Snapshot(),
	})
}

func (a *api) plugins(c *gin.Context) {
	c.JSON(http.StatusOK, PluginsResponse{
		Inputs:     plugins.AvailableInputs(),
		Transforms: plugins.AvailableTransforms(),
		Outputs:    plugins.AvailableOutputs(),
	})
}

func (a *api) recordList(c *gin.Context) {
	n := 0
	if param := c.Query("n"); param != "" {
		var err error
		if n, err = strconv.Atoi(param); err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "n must be a non-negative integer"})
			return
		}
	}
	records := a.records.Records(n)
	if records == nil {
		records = []*metrics.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (a *api) latestRecord(c *gin.Context) {
	record := a.records.Latest()
	if record == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no records collected yet"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a *api) reload(c *gin.Context) {
	if err := a.agent.ReloadConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ReloadResponse{Result: "Configuration reload successful"})
}
