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

package core

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"gopkg.in/op/go-logging.v1"
)

// App represents the collection agent application
type App struct {
	name       string
	version    string
	configFile string
	envFile    string
	selfTest   bool
	overrides  *Overrides
	pipeline   *Pipeline
	config     *config.Config
	signalChan chan os.Signal
	stopChan   chan struct{}
	stopOnce   sync.Once
	exitCode   int
	logFile    *defaultLogBackend
	lock       *flock.Flock
	mutex      sync.RWMutex
	reloading  sync.Mutex
}

// Overrides holds command line values that replace the matching general
// configuration values. A nil field was not given on the command line.
type Overrides struct {
	CollectionInterval *time.Duration
	StartTime          *int64
	Verbose            *bool
}

// Apply the overrides to the general section of the given configuration
func (o *Overrides) Apply(cfg *config.Config) error {
	general := cfg.General()
	if o.CollectionInterval != nil {
		if *o.CollectionInterval < time.Second {
			return fmt.Errorf("-collection-interval must be at least 1 second")
		}
		general.CollectionInterval = *o.CollectionInterval
	}
	if o.StartTime != nil {
		general.StartTime = *o.StartTime
	}
	if o.Verbose != nil {
		general.Verbose = *o.Verbose
	}
	return nil
}

// NewApp creates a new collection agent application
func NewApp(name, version string) *App {
	return &App{
		name:      name,
		version:   version,
		overrides: &Overrides{},
		pipeline:  NewPipeline(),
		stopChan:  make(chan struct{}),
	}
}

// StartUp processes the command line arguments and sets up logging
func (a *App) StartUp() {
	var version bool
	var configDebug bool
	var listSupported bool
	var configTest bool
	var cpuProfile string
	var collectionInterval int
	var startTime int64
	var verbose bool

	flag.BoolVar(&version, "version", false, "Show version information")
	flag.BoolVar(&configDebug, "config-debug", false, "Enable configuration parsing debug logs on the console")
	flag.BoolVar(&listSupported, "list-supported", false, "List the supported input, transform and output plugins")
	flag.BoolVar(&configTest, "config-test", false, "Test the configuration specified by -config")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write a cpu profile to the specified file")
	flag.StringVar(&a.configFile, "config", config.DefaultConfigurationFile, "The configuration file to load")
	flag.StringVar(&a.envFile, "env-file", "", "Load environment variables from this file before reading the configuration")
	flag.IntVar(&collectionInterval, "collection-interval", 0, "Collection interval in seconds, overriding the configuration")
	flag.Int64Var(&startTime, "start-time", 0, "Epoch time in seconds of the first collection, which must be in the future")
	flag.BoolVar(&verbose, "verbose", false, "Print the raw response of every input plugin")
	flag.BoolVar(&a.selfTest, "self-test", false, "Run a fixed number of collections and exit with the number that failed")

	flag.Parse()

	if version {
		fmt.Printf("%s version %s\n", a.name, a.version)
		os.Exit(0)
	}

	if listSupported {
		printSupported("input", plugins.AvailableInputs())
		printSupported("transform", plugins.AvailableTransforms())
		printSupported("output", plugins.AvailableOutputs())
		os.Exit(0)
	}

	if a.configFile == "" {
		fmt.Fprintf(os.Stderr, "Please specify a configuration file with -config.\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Only flags given explicitly override the configuration
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "collection-interval":
			interval := time.Duration(collectionInterval) * time.Second
			a.overrides.CollectionInterval = &interval
		case "start-time":
			a.overrides.StartTime = &startTime
		case "verbose":
			a.overrides.Verbose = &verbose
		}
	})

	// Enable config logging if requested
	if configDebug {
		logging.SetLevel(logging.DEBUG, "config")
	}

	if a.envFile != "" {
		if err := config.LoadEnvFile(a.envFile); err != nil {
			fmt.Printf("Configuration error: %s\n", err)
			os.Exit(1)
		}
	}

	cfg, err := a.loadConfig()

	if configTest {
		if err == nil {
			fmt.Printf("Configuration OK\n")
			os.Exit(0)
		}
		fmt.Printf("Configuration test failed: %s\n", err)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Configuration error: %s\n", err)
		os.Exit(1)
	}

	a.config = cfg

	if err = a.configureLogging(); err != nil {
		fmt.Printf("Failed to initialise logging: %s", err)
		os.Exit(1)
	}

	if err = a.lockTmpDirectory(); err != nil {
		log.Critical("%s", err)
		os.Exit(1)
	}

	if cpuProfile != "" {
		log.Notice("Starting CPU profiler")
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		go func() {
			time.Sleep(60 * time.Second)
			pprof.StopCPUProfile()
			log.Panic("CPU profile completed")
		}()
	}
}

func printSupported(kind string, names []string) {
	fmt.Printf("Available %s plugins:\n", kind)
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}

// Run the application until shutdown, returning the exit code
func (a *App) Run() int {
	a.pipeline.Start()

	log.Notice("Pipeline ready")

	a.signalChan = make(chan os.Signal, 1)
	a.registerSignals()

SignalLoop:
	for {
		select {
		case signal := <-a.signalChan:
			if isShutdownSignal(signal) {
				break SignalLoop
			}

			if err := a.ReloadConfig(); err != nil {
				log.Errorf("Configuration reload failed: %s", err)
			}
		case <-a.stopChan:
			break SignalLoop
		}
	}

	a.cleanShutdown()

	log.Notice("Exiting")

	if a.lock != nil {
		a.lock.Unlock()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return a.exitCode
}

// Stop requests the application to start shutting down, setting the exit
// code it will return
func (a *App) Stop(exitCode int) {
	a.stopOnce.Do(func() {
		a.exitCode = exitCode
		close(a.stopChan)
	})
}

// AddToPipeline adds a pipeline segment to the pipeline
func (a *App) AddToPipeline(segment IPipelineSegment) {
	a.pipeline.Add(segment)
}

// Pipeline returns the pipeline
func (a *App) Pipeline() *Pipeline {
	return a.pipeline
}

// Snapshot returns the status of the pipeline
func (a *App) Snapshot() *Snapshot {
	return a.pipeline.Snapshot()
}

// Config returns the current configuration
func (a *App) Config() *config.Config {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.config
}

// SelfTest returns true if the application should run a self test and exit
func (a *App) SelfTest() bool {
	return a.selfTest
}

// Name returns the application name
func (a *App) Name() string {
	return a.name
}

// Version returns the application version
func (a *App) Version() string {
	return a.version
}

// configureLogging enables the available logging backends
func (a *App) configureLogging() (err error) {
	general := a.config.General()
	backends := make([]logging.Backend, 0, 1)

	// First, the stdout backend
	if general.LogStdout {
		backends = append(backends, logging.NewLogBackend(os.Stdout, "", golog.LstdFlags|golog.Lmicroseconds))
	}

	// Log file?
	if general.LogFile != "" {
		a.logFile, err = newDefaultLogBackend(general.LogFile, "", golog.LstdFlags|golog.Lmicroseconds)
		if err != nil {
			return
		}

		backends = append(backends, a.logFile)
	}

	if err = a.configureLoggingPlatform(&backends); err != nil {
		return
	}

	// Set backends BEFORE log level (or we reset log level)
	logging.SetBackend(backends...)
	logging.SetLevel(general.LogLevel, "")

	return nil
}

// lockTmpDirectory creates the working directory and takes a lock within it
// so that only one agent runs against it
func (a *App) lockTmpDirectory() error {
	dir := a.config.General().TmpDirectory
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("Failed to create tmp directory %s: %s", dir, err)
	}

	a.lock = flock.New(filepath.Join(dir, "nuoca.lock"))
	locked, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("Failed to lock tmp directory %s: %s", dir, err)
	}
	if !locked {
		return fmt.Errorf("Another instance is already running with tmp directory %s", dir)
	}
	return nil
}

// loadConfig loads the configuration file and applies command line overrides
func (a *App) loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.Load(a.configFile, true); err != nil {
		return nil, err
	}
	if err := a.overrides.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReloadConfig reloads the configuration data and submits to all running
// routines in the pipeline that are subscribed to it, so they may update their
// runtime configuration
func (a *App) ReloadConfig() error {
	// Signals and the admin API can both request a reload
	a.reloading.Lock()
	defer a.reloading.Unlock()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.mutex.Lock()
	a.config = cfg
	a.mutex.Unlock()

	log.Notice("Configuration reload successful")

	// Update the log level
	logging.SetLevel(cfg.General().LogLevel, "")

	// Reopen the log file if we specified one
	if a.logFile != nil {
		if err := a.logFile.Reopen(); err != nil {
			log.Warningf("Failed to reopen log file: %s", err)
		} else {
			log.Notice("Log file reopened")
		}
	}

	// Pass the new config to the pipeline workers
	a.pipeline.SendConfig(cfg)

	return nil
}

// cleanShutdown initiates a clean shutdown of the pipeline
func (a *App) cleanShutdown() {
	log.Notice("Initiating shutdown")

	a.pipeline.Shutdown()
	a.pipeline.Wait()
}
