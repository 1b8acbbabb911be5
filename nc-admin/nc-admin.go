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
	"fmt"
	"os"

	"github.com/nuodb/nuoca/nc-lib/admin"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/spf13/cobra"

	_ "github.com/nuodb/nuoca/nc-lib/plugins/all"
)

var (
	adminConnect string
	configFile   string
	token        string
	jsonOutput   bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nc-admin",
		Short:        "Administer a running nuoca collection agent",
		Version:      core.Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&adminConnect, "connect", "", "the admin address of the agent, such as tcp:127.0.0.1:12346 or unix:/path")
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigurationFile, "read the admin address and secret from this agent configuration file when --connect is not given")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("NUOCA_ADMIN_TOKEN"), "bearer token for the agent (default $NUOCA_ADMIN_TOKEN)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")

	root.AddCommand(
		newStatusCommand(),
		newPluginsCommand(),
		newRecordsCommand(),
		newReloadCommand(),
		newTokenCommand(),
	)
	return root
}

// loadAdminConfig reads the admin section of the agent configuration
func loadAdminConfig() (*admin.Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("either --connect or --config must be specified")
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %s", err)
	}
	return admin.FetchConfig(cfg), nil
}

// newClient connects using the flags, falling back to the configuration
// file for the address and, when no token is given, minting one from the
// configured secret
func newClient() (*admin.Client, error) {
	connect, bearer := adminConnect, token
	if connect == "" {
		adminConfig, err := loadAdminConfig()
		if err != nil {
			return nil, err
		}
		if !adminConfig.Enabled {
			return nil, fmt.Errorf("the admin interface is not enabled in %s", configFile)
		}
		connect = adminConfig.Bind
		if bearer == "" && adminConfig.JWTSecret != "" {
			if bearer, err = admin.NewToken(adminConfig.JWTSecret, "nc-admin", tokenTTL); err != nil {
				return nil, err
			}
		}
	}
	return admin.NewClient(connect, bearer)
}
