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

package main

import (
	"os"

	"github.com/nuodb/nuoca/nc-lib/admin"
	"github.com/nuodb/nuoca/nc-lib/collector"
	"github.com/nuodb/nuoca/nc-lib/core"
	"gopkg.in/op/go-logging.v1"

	_ "github.com/nuodb/nuoca/nc-lib/plugins/all"
)

var log = logging.MustGetLogger("nuoca")

func main() {
	app := core.NewApp("nuoca", core.Version)
	app.StartUp()

	log.Noticef("NuoDB Collection Agent version %s pipeline starting", core.Version)

	coll := collector.NewCollector(app)
	app.AddToPipeline(coll)

	if admin.FetchConfig(app.Config()).Enabled {
		server, err := admin.NewServer(app, coll.History())
		if err != nil {
			log.Critical("Failed to initialise: %s", err)
			os.Exit(1)
		}
		app.AddToPipeline(server)
	}

	os.Exit(app.Run())
}
