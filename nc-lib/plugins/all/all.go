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

// Package all registers every built in plugin
package all

import (
	// Inputs
	_ "github.com/nuodb/nuoca/nc-lib/inputs/counter"
	_ "github.com/nuodb/nuoca/nc-lib/inputs/exec"
	_ "github.com/nuodb/nuoca/nc-lib/inputs/nuomonitor"
	_ "github.com/nuodb/nuoca/nc-lib/inputs/sql"

	// Transforms
	_ "github.com/nuodb/nuoca/nc-lib/transforms/expression"
	_ "github.com/nuodb/nuoca/nc-lib/transforms/filter"
	_ "github.com/nuodb/nuoca/nc-lib/transforms/rename"

	// Outputs
	_ "github.com/nuodb/nuoca/nc-lib/outputs/elasticsearch"
	_ "github.com/nuodb/nuoca/nc-lib/outputs/file"
	_ "github.com/nuodb/nuoca/nc-lib/outputs/kafka"
	_ "github.com/nuodb/nuoca/nc-lib/outputs/printer"
)
