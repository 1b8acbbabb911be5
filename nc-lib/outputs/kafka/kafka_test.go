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

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T, options map[string]interface{}) *Factory {
	p := config.NewParser(nil)
	factory, err := NewFactory(p, "/outputs[0]/", options, "kafka")
	require.NoError(t, err)
	require.NoError(t, factory.(*Factory).Validate(p, "/outputs[0]/"))
	return factory.(*Factory)
}

func TestKafkaStore(t *testing.T) {
	factory := newTestFactory(t, map[string]interface{}{
		"brokers":       []interface{}{"127.0.0.1:9092"},
		"topic":         "nuoca",
		"required acks": "all",
	})

	var producer *mocks.SyncProducer
	factory.newProducer = func(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
		assert.Equal(t, []string{"127.0.0.1:9092"}, brokers)
		assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
		producer = mocks.NewSyncProducer(t, cfg)
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
			var decoded map[string]interface{}
			if err := json.Unmarshal(value, &decoded); err != nil {
				return err
			}
			if decoded[metrics.KeyHost] != "db1" || decoded["counter.value"] != float64(3) {
				return errors.New("unexpected message value")
			}
			return nil
		})
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		return producer, nil
	}

	output := factory.NewOutput("kafka")
	require.NoError(t, output.Startup(context.Background()))

	record := metrics.NewRecord(1500000030, 30, "db1")
	record.Values["counter.value"] = int64(3)
	require.NoError(t, output.Store(context.Background(), record))
	assert.Error(t, output.Store(context.Background(), record))

	require.NoError(t, output.Shutdown())
}

func TestKafkaConnectBackoff(t *testing.T) {
	factory := newTestFactory(t, map[string]interface{}{
		"brokers": []interface{}{"127.0.0.1:9092"},
		"topic":   "nuoca",
	})

	attempts := 0
	factory.newProducer = func(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
		attempts++
		return nil, sarama.ErrOutOfBrokers
	}

	output := factory.NewOutput("kafka")

	// Startup tolerates unreachable brokers
	require.NoError(t, output.Startup(context.Background()))
	assert.Equal(t, 1, attempts)

	// Within the backoff no further connection is attempted
	assert.Error(t, output.Store(context.Background(), metrics.NewRecord(1, 1, "h")))
	assert.Equal(t, 1, attempts)

	assert.NoError(t, output.Shutdown())
}

func TestKafkaValidation(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"/outputs[0]/brokers must have at least 1 entries": {"topic": "nuoca"},
		"/outputs[0]/topic must be specified":              {"brokers": []interface{}{"127.0.0.1:9092"}},
		"/outputs[0]/required acks must be one of: none, local, all": {
			"brokers": []interface{}{"127.0.0.1:9092"}, "topic": "nuoca", "required acks": "some",
		},
	}

	for expected, options := range cases {
		p := config.NewParser(nil)
		factory, err := NewFactory(p, "/outputs[0]/", options, "kafka")
		require.NoError(t, err)
		assert.EqualError(t, factory.(*Factory).Validate(p, "/outputs[0]/"), expected)
	}
}
