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

// Package admin provides the REST administration interface and its client
package admin

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/core"
	"go.uber.org/atomic"
	"gopkg.in/op/go-logging.v1"
	"gopkg.in/tylerb/graceful.v1"
)

var log *logging.Logger

const serverStopTimeout = 10 * time.Second

// Server serves the REST interface as a pipeline segment
type Server struct {
	core.PipelineSegment
	core.PipelineConfigReceiver

	config  *Config
	secret  *atomic.String
	handler http.Handler
	server  *graceful.Server
}

// NewServer creates the admin server and starts listening
func NewServer(app *core.App, records RecordSource) (*Server, error) {
	return newServer(app, records, FetchConfig(app.Config()))
}

func newServer(agent Agent, records RecordSource, cfg *Config) (*Server, error) {
	ret := &Server{
		config: cfg,
		secret: atomic.NewString(cfg.JWTSecret),
	}
	ret.handler = newRouter(agent, records, ret.secret.Load)

	listener, err := listen(cfg)
	if err != nil {
		return nil, err
	}
	ret.startServer(listener)

	if cfg.JWTSecret == "" {
		log.Warning("[admin] No jwt secret is configured, the REST interface is not authenticated")
	}
	return ret, nil
}

// Run until shutdown, moving the listener when the configured address
// changes
func (s *Server) Run() {
	defer func() {
		s.Done()
	}()

	var closingOldServer <-chan struct{}
	var reloadingConfig *Config
	var shuttingDown, shutdownStarted bool

ListenerLoop:
	for {
		select {
		case <-s.OnShutdown():
			shuttingDown = true
			if closingOldServer == nil {
				closingOldServer = s.shutdownServer()
				shutdownStarted = true
			}
		case cfg := <-s.OnConfig():
			s.reloadConfig(cfg, &closingOldServer, &reloadingConfig)
		case <-closingOldServer:
			log.Info("[admin] REST administration stopped")
			closingOldServer = nil
			if shuttingDown {
				if shutdownStarted {
					break ListenerLoop
				}
				closingOldServer = s.shutdownServer()
				shutdownStarted = true
				continue
			}

			if reloadingConfig != nil {
				closingOldServer = s.reloadServer(reloadingConfig)
				reloadingConfig = nil
			}
		}
	}

	log.Info("[admin] REST administration exited")
}

func (s *Server) reloadConfig(cfg *config.Config, closingOldServer *<-chan struct{}, reloadingConfig **Config) {
	newConfig := FetchConfig(cfg)
	s.secret.Store(newConfig.JWTSecret)

	// Admin cannot be disabled without a restart
	if !newConfig.Enabled || newConfig.Bind == s.config.Bind {
		return
	}

	if *closingOldServer != nil {
		*reloadingConfig = newConfig
		return
	}
	*closingOldServer = s.reloadServer(newConfig)
}

func listen(cfg *Config) (net.Listener, error) {
	bind := splitAdminConnectString(cfg.Bind)

	listener, ok := registeredListeners[bind[0]]
	if !ok {
		return nil, fmt.Errorf("unknown transport specified for admin bind: '%s'", bind[0])
	}

	ret, err := listener(bind[0], bind[1])
	if err != nil {
		return nil, err
	}
	log.Infof("[admin] REST administration listening on %s:%s", bind[0], bind[1])
	return ret, nil
}

func (s *Server) startServer(listener net.Listener) {
	s.server = &graceful.Server{
		// Shutdown is driven by the pipeline
		NoSignalHandling: true,
		Server: &http.Server{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler:      s.handler,
		},
	}
	go s.server.Serve(listener)
}

func (s *Server) shutdownServer() <-chan struct{} {
	s.server.Stop(serverStopTimeout)
	log.Info("[admin] REST administration exiting")
	return s.server.StopChan()
}

func (s *Server) reloadServer(cfg *Config) <-chan struct{} {
	newListener, err := listen(cfg)
	if err != nil {
		log.Errorf("[admin] The new admin configuration failed to apply: %s", err)
		return nil
	}

	stopChan := s.shutdownServer()
	s.config = cfg
	s.startServer(newListener)
	return stopChan
}

func init() {
	log = logging.MustGetLogger("admin")
	gin.SetMode(gin.ReleaseMode)
}
