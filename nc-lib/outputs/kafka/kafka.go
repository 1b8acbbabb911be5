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

// Package kafka provides an output that publishes records to a Kafka topic
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

const (
	defaultClientID     string        = "nuoca"
	defaultRequiredAcks string        = "local"
	defaultRetries      int           = 3
	defaultTimeout      time.Duration = 10 * time.Second
	defaultMaxBackoff   time.Duration = 5 * time.Minute
)

// Factory holds the configuration of a kafka output
type Factory struct {
	Brokers      []string      `config:"brokers" validate:"min=1,dive,hostname_port"`
	Topic        string        `config:"topic" validate:"required"`
	ClientID     string        `config:"client id" validate:"required"`
	RequiredAcks string        `config:"required acks" validate:"oneof=none local all"`
	Retries      int           `config:"retries" validate:"min=0"`
	Timeout      time.Duration `config:"timeout"`
	Compression  string        `config:"compression" validate:"oneof=none gzip snappy lz4 zstd"`

	// newProducer is replaced in tests
	newProducer func(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error)
}

// NewFactory parses the configuration of a kafka output
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.OutputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.ClientID = defaultClientID
	f.RequiredAcks = defaultRequiredAcks
	f.Retries = defaultRetries
	f.Timeout = defaultTimeout
	f.Compression = "none"
	f.newProducer = sarama.NewSyncProducer
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if err := config.ValidateStruct(configPath, f); err != nil {
		return err
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("%stimeout must be greater than 0", configPath)
	}
	if err := f.saramaConfig().Validate(); err != nil {
		return fmt.Errorf("%s: %s", configPath, err)
	}
	return nil
}

// saramaConfig returns the producer configuration
func (f *Factory) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = f.ClientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = f.Retries
	cfg.Producer.Timeout = f.Timeout
	cfg.Net.DialTimeout = f.Timeout

	switch f.RequiredAcks {
	case "none":
		cfg.Producer.RequiredAcks = sarama.NoResponse
	case "all":
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		cfg.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch f.Compression {
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
		cfg.Version = sarama.V2_1_0_0
	}

	return cfg
}

// NewOutput creates a new kafka output
func (f *Factory) NewOutput(name string) plugins.Output {
	return &Output{
		name:    name,
		factory: f,
		backoff: core.NewExpBackoff(name, time.Second, defaultMaxBackoff),
	}
}

// Output publishes each record as a JSON message keyed by the host
type Output struct {
	name    string
	factory *Factory

	mutex    sync.Mutex
	producer sarama.SyncProducer
	backoff  *core.ExpBackoff
}

// Name returns the instance name
func (o *Output) Name() string {
	return o.name
}

// Startup connects the producer. If the brokers are unreachable the
// connection is retried when records are stored.
func (o *Output) Startup(ctx context.Context) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if err := o.connect(); err != nil {
		log.Warningf("[%s] %s", o.name, err)
	}
	return nil
}

// connect creates the producer, observing the backoff after failures
func (o *Output) connect() error {
	if o.producer != nil {
		return nil
	}
	if !o.backoff.Ready() {
		return fmt.Errorf("not connected to %v, waiting to retry", o.factory.Brokers)
	}

	producer, err := o.factory.newProducer(o.factory.Brokers, o.factory.saramaConfig())
	if err != nil {
		delay := o.backoff.Trigger()
		return fmt.Errorf("failed to connect to %v, retrying in %s: %s", o.factory.Brokers, delay, err)
	}

	log.Infof("[%s] Connected to %v, publishing to %s", o.name, o.factory.Brokers, o.factory.Topic)
	o.backoff.Reset()
	o.producer = producer
	return nil
}

// Store publishes the record and waits for the configured acknowledgement
func (o *Output) Store(ctx context.Context, record *metrics.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if err := o.connect(); err != nil {
		return err
	}

	partition, offset, err := o.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     o.factory.Topic,
		Key:       sarama.StringEncoder(record.Host),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Unix(record.Timestamp, 0),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %s", o.factory.Topic, err)
	}

	log.Debugf("[%s] Published record %d to %s/%d at offset %d", o.name, record.Timestamp, o.factory.Topic, partition, offset)
	return nil
}

// Shutdown closes the producer
func (o *Output) Shutdown() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.producer == nil {
		return nil
	}
	err := o.producer.Close()
	o.producer = nil
	return err
}

func init() {
	log = logging.MustGetLogger("kafka")
	plugins.RegisterOutput("kafka", NewFactory)
}
