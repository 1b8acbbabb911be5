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

package exec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nuodb/nuoca/nc-lib/metrics"
	"gopkg.in/op/go-logging.v1"
)

var (
	log *logging.Logger

	// ErrCommandTimeout is returned when the command does not finish within
	// the configured timeout
	ErrCommandTimeout = errors.New("Command timeout")

	errSkippedOutput = errors.New("Skipped output")
)

// Input runs a command on every collection and parses its output
type Input struct {
	name    string
	factory *Factory
}

// Name returns the instance name
func (i *Input) Name() string {
	return i.name
}

// Startup checks the command can be found
func (i *Input) Startup(ctx context.Context) error {
	if _, err := osexec.LookPath(i.factory.Command); err != nil {
		return fmt.Errorf("command %s is not available: %s", i.factory.Command, err)
	}
	return nil
}

// Collect runs the command and returns the values from its output
func (i *Input) Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, i.factory.Timeout)
	defer cancel()

	command := osexec.CommandContext(ctx, i.factory.Command, i.factory.Args...)
	command.Env = os.Environ()
	for k, v := range i.factory.Env {
		command.Env = append(command.Env, sanitizeEnvName(k)+"="+v)
	}

	log.Debugf("[%s] Command: %s %v", i.name, command.Path, command.Args)

	stdout := new(bytes.Buffer)
	command.Stdout = stdout
	stderrPipe, err := command.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := command.Start(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go i.stderrReader(stderrPipe, &wg)
	wg.Wait()

	err = command.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrCommandTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("command failed: %s", err)
	}

	values, err := i.parse(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return metrics.NewResponse(values), nil
}

// Shutdown is a no-op as commands only run during Collect
func (i *Input) Shutdown() error {
	return nil
}

func (i *Input) stderrReader(reader io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		log.Warningf("[%s] Stderr: %s", i.name, scanner.Bytes())
	}
}

// parse decodes the command output according to the configured format
func (i *Input) parse(output []byte) (metrics.Values, error) {
	format := i.factory.Format
	if format == "auto" {
		format = "lines"
		if trimmed := bytes.TrimSpace(output); len(trimmed) != 0 && trimmed[0] == '{' {
			format = "json"
		}
	}

	if format == "json" {
		decoder := json.NewDecoder(bytes.NewReader(output))
		decoder.UseNumber()
		values := metrics.Values{}
		if err := decoder.Decode(&values); err != nil {
			return nil, fmt.Errorf("invalid JSON output: %s", err)
		}
		return metrics.NormalizeValues(values), nil
	}

	return parseLines(output)
}

// parseLines parses munin style "field.value N" lines and plain "key value"
// lines. A "multigraph name" line prefixes the fields that follow it.
func parseLines(output []byte) (metrics.Values, error) {
	values := metrics.Values{}
	multigraph := ""

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		name, value, err := parseLine(scanner.Bytes())
		if err == errSkippedOutput {
			continue
		} else if err != nil {
			return nil, err
		}

		if name == "multigraph" {
			multigraph = value
			continue
		}

		name = strings.TrimSuffix(name, ".value")
		if multigraph != "" {
			name = multigraph + "." + name
		}
		values[name] = metrics.ParseNumeric(value)
	}

	return values, scanner.Err()
}

func parseLine(line []byte) (string, string, error) {
	line = bytes.Trim(line, " \t")
	if len(line) == 0 || line[0] == '#' {
		return "", "", errSkippedOutput
	}

	split := bytes.IndexAny(line, " \t")
	if split == -1 {
		return "", "", fmt.Errorf("Invalid output: %s", line)
	}

	return string(line[:split]), string(bytes.TrimLeft(line[split+1:], " \t")), nil
}

func sanitizeEnvName(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	return strings.ReplaceAll(name, "=", "")
}

func init() {
	log = logging.MustGetLogger("exec")
}
