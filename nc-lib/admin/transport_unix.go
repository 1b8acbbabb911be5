//go:build !windows

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

package admin

import (
	"fmt"
	"net"
	"os"
)

func connectUnix(transport, path string) (net.Conn, error) {
	uaddr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("The connection address specified is not valid: %s", err)
	}
	return net.DialUnix("unix", nil, uaddr)
}

func listenUnix(transport, addr string) (net.Listener, error) {
	uaddr, err := net.ResolveUnixAddr("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("The admin bind address specified is not valid: %s", err)
	}

	// A socket left by a previous run would fail with address in use
	if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("Failed to remove the existing socket file: %s", err)
	}

	return net.ListenUnix("unix", uaddr)
}

func init() {
	registerTransport("unix", connectUnix, listenUnix)
}
