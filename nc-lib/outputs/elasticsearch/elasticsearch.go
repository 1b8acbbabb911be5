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

// Package elasticsearch provides an output that indexes records into
// Elasticsearch using the bulk API
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/segmentio/ksuid"
	"go.uber.org/atomic"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

// ErrNotStarted is returned when storing to an output whose startup failed
var ErrNotStarted = errors.New("elasticsearch output is not started")

// Output indexes records into Elasticsearch
type Output struct {
	name    string
	factory *Factory

	client  *elasticsearch.Client
	indexer esutil.BulkIndexer

	mutex           sync.Mutex
	templatePending bool
	backoff         *core.ExpBackoff

	failed *atomic.Uint64
}

func newOutput(name string, factory *Factory) *Output {
	return &Output{
		name:    name,
		factory: factory,
		backoff: core.NewExpBackoff(name+" template", time.Second, 5*time.Minute),
		failed:  atomic.NewUint64(0),
	}
}

// Name returns the instance name
func (o *Output) Name() string {
	return o.name
}

// Startup creates the client and bulk indexer and installs the index
// template. A template failure is retried while storing records.
func (o *Output) Startup(ctx context.Context) error {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: o.factory.Addresses,
		Username:  o.factory.Username,
		Password:  o.factory.Password,
		CACert:    o.factory.caCert,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %s", err)
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    o.factory.Workers,
		FlushBytes:    o.factory.FlushBytes,
		FlushInterval: o.factory.FlushInterval,
		Timeout:       o.factory.Timeout,
		OnError: func(ctx context.Context, err error) {
			log.Errorf("[%s] Bulk request failed: %s", o.name, err)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %s", err)
	}

	o.client = client
	o.indexer = indexer

	if o.factory.TemplateInstall {
		o.templatePending = true
		o.installTemplate(ctx)
	}

	log.Infof("[%s] Indexing records into %v", o.name, o.factory.Addresses)
	return nil
}

// installTemplate installs the index template if it does not exist yet,
// scheduling a retry on failure
func (o *Output) installTemplate(ctx context.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.templatePending || !o.backoff.Ready() {
		return
	}

	if err := o.ensureTemplate(ctx); err != nil {
		delay := o.backoff.Trigger()
		log.Warningf("[%s] Failed to install index template %s, retrying in %s: %s", o.name, o.factory.TemplateName, delay, err)
		return
	}

	o.backoff.Reset()
	o.templatePending = false
}

func (o *Output) ensureTemplate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.factory.Timeout)
	defer cancel()

	existsReq := esapi.IndicesExistsIndexTemplateRequest{Name: o.factory.TemplateName}
	res, err := existsReq.Do(ctx, o.client)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Debugf("[%s] Index template %s already exists", o.name, o.factory.TemplateName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected response checking template: %s", res.Status())
	}

	body, err := templateBody(o.factory.pattern.Wildcard())
	if err != nil {
		return err
	}

	putReq := esapi.IndicesPutIndexTemplateRequest{
		Name: o.factory.TemplateName,
		Body: bytes.NewReader(body),
	}
	res, err = putReq.Do(ctx, o.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("template rejected: %s", res.String())
	}

	log.Noticef("[%s] Installed index template %s", o.name, o.factory.TemplateName)
	return nil
}

// document returns the indexed form of a record, which adds @timestamp to
// the flat record
func document(record *metrics.Record) ([]byte, error) {
	doc := record.Flatten()
	doc["@timestamp"] = time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339)
	return json.Marshal(doc)
}

// Store queues the record for the next bulk request
func (o *Output) Store(ctx context.Context, record *metrics.Record) error {
	if o.indexer == nil {
		return ErrNotStarted
	}

	if o.factory.TemplateInstall {
		o.installTemplate(ctx)
	}

	body, err := document(record)
	if err != nil {
		return err
	}

	return o.indexer.Add(ctx, esutil.BulkIndexerItem{
		Index:      o.factory.pattern.Name(time.Unix(record.Timestamp, 0)),
		Action:     "index",
		DocumentID: ksuid.New().String(),
		Body:       bytes.NewReader(body),
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			o.failed.Inc()
			if err != nil {
				log.Errorf("[%s] Failed to index record %s: %s", o.name, item.DocumentID, err)
				return
			}
			log.Errorf("[%s] Failed to index record %s: %s: %s", o.name, item.DocumentID, res.Error.Type, res.Error.Reason)
		},
	})
}

// Failed returns the number of records Elasticsearch rejected
func (o *Output) Failed() uint64 {
	return o.failed.Load()
}

// Shutdown flushes queued records and stops the indexer
func (o *Output) Shutdown() error {
	if o.indexer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.factory.Timeout)
	defer cancel()

	err := o.indexer.Close(ctx)
	stats := o.indexer.Stats()
	log.Infof("[%s] Indexed %d records (%d failed)", o.name, stats.NumIndexed, stats.NumFailed)
	o.indexer = nil
	return err
}

func init() {
	log = logging.MustGetLogger("elasticsearch")
}
