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

// Package sql provides an input that reports the results of SQL queries
// against a MySQL compatible database
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

// Input runs the configured queries on every collection
type Input struct {
	name    string
	factory *Factory
	db      *sql.DB
}

// Name returns the instance name
func (i *Input) Name() string {
	return i.name
}

// Startup opens the database and checks the connection
func (i *Input) Startup(ctx context.Context) error {
	connector, err := mysql.NewConnector(i.factory.dsnConfig)
	if err != nil {
		return err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(i.factory.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to %s: %s", i.factory.dsnConfig.Addr, err)
	}

	log.Infof("[%s] Connected to %s", i.name, i.factory.dsnConfig.Addr)
	i.db = db
	return nil
}

// Collect runs every query, reporting the columns of its first row as
// "<query>.<column>"
func (i *Input) Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error) {
	values := metrics.Values{}
	for _, query := range i.factory.Queries {
		row, err := i.queryFirstRow(ctx, query.Query)
		if err != nil {
			return nil, fmt.Errorf("query %s failed: %s", query.Name, err)
		}
		for column, value := range row {
			values[query.Name+"."+column] = value
		}
	}
	return metrics.NewResponse(values), nil
}

func (i *Input) queryFirstRow(ctx context.Context, query string) (metrics.Values, error) {
	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		log.Debugf("[%s] Query returned no rows: %s", i.name, query)
		return metrics.Values{}, nil
	}

	raw := make([]interface{}, len(columns))
	scan := make([]interface{}, len(columns))
	for n := range raw {
		scan[n] = &raw[n]
	}
	if err := rows.Scan(scan...); err != nil {
		return nil, err
	}

	return rowValues(columns, raw), nil
}

// rowValues converts scanned column values, which the driver returns as
// []byte for most types, into numbers where possible. NULL columns are
// omitted.
func rowValues(columns []string, raw []interface{}) metrics.Values {
	values := make(metrics.Values, len(columns))
	for n, column := range columns {
		switch vt := raw[n].(type) {
		case nil:
			continue
		case time.Time:
			values[column] = vt.Unix()
		case []byte:
			values[column] = metrics.ParseNumeric(string(vt))
		default:
			values[column] = metrics.Normalize(vt)
		}
	}
	return values
}

// Shutdown closes the database
func (i *Input) Shutdown() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

func init() {
	log = logging.MustGetLogger("sql")
}
