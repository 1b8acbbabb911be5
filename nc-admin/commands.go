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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nuodb/nuoca/nc-lib/admin"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/spf13/cobra"
)

const tokenTTL = 5 * time.Minute

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display the collection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(status)
			}

			fmt.Printf("nuoca version %s, status at %s\n\n", status.Version, status.Time.Local().Format(time.RFC1123))
			for _, sub := range status.Pipeline.Subs {
				printSnapshot(sub, "")
			}
			return nil
		},
	}
}

// printSnapshot prints a status tree, showing epoch times relative to now
func printSnapshot(snap *core.Snapshot, indent string) {
	fmt.Printf("%s%s:\n", indent, snap.Description)

	names := make([]string, 0, len(snap.Entries))
	for name := range snap.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%s  %s: %s\n", indent, name, formatEntry(name, snap.Entries[name]))
	}
	for _, sub := range snap.Subs {
		printSnapshot(sub, indent+"  ")
	}
}

func formatEntry(name string, value interface{}) string {
	number, ok := value.(float64)
	if !ok {
		return fmt.Sprint(value)
	}
	if strings.Contains(name, "Timestamp") || name == "Next Collection" {
		if number == 0 {
			return "never"
		}
		return humanize.Time(time.Unix(int64(number), 0))
	}
	return humanize.Comma(int64(number))
}

func newPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins the agent supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			available, err := client.Plugins()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(available)
			}
			fmt.Printf("Inputs:     %s\n", strings.Join(available.Inputs, ", "))
			fmt.Printf("Transforms: %s\n", strings.Join(available.Transforms, ", "))
			fmt.Printf("Outputs:    %s\n", strings.Join(available.Outputs, ", "))
			return nil
		},
	}
}

func newRecordsCommand() *cobra.Command {
	var count int
	var values bool

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Display the most recent records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("-n must not be negative")
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			records, err := client.Records(count)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No records collected yet")
				return nil
			}
			for _, record := range records {
				printRecord(record, values)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of records to display, 0 for all")
	cmd.Flags().BoolVarP(&values, "values", "v", false, "display the values of each record")
	return cmd
}

func printRecord(record *metrics.Record, values bool) {
	when := time.Unix(record.Timestamp, 0)
	fmt.Printf("%d (%s) %s: %s values over %ds\n", record.Timestamp, humanize.Time(when), record.Host, humanize.Comma(int64(len(record.Values))), record.Interval)
	if !values {
		return
	}
	for _, key := range record.Values.Keys() {
		fmt.Printf("  %s = %v\n", key, record.Values[key])
	}
}

func newReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the agent configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			result, err := client.Reload()
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var secret string
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create a bearer token for the admin interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				adminConfig, err := loadAdminConfig()
				if err != nil {
					return err
				}
				if adminConfig.JWTSecret == "" {
					return fmt.Errorf("no jwt secret is configured in %s", configFile)
				}
				secret = adminConfig.JWTSecret
			}
			signed, err := admin.NewToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			if ttl != 0 {
				fmt.Fprintf(os.Stderr, "Expires %s\n", humanize.Time(time.Now().Add(ttl)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "the jwt secret, read from the configuration file if not given")
	cmd.Flags().StringVar(&subject, "subject", "nc-admin", "the subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the token is valid, 0 for no expiry")
	return cmd
}
