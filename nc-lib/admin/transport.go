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
	"strings"
)

type dialerFunc func(transport, addr string) (net.Conn, error)
type listenerFunc func(transport, addr string) (net.Listener, error)

var (
	registeredDialers   = make(map[string]dialerFunc)
	registeredListeners = make(map[string]listenerFunc)
)

func registerTransport(name string, dialer dialerFunc, listener listenerFunc) {
	registeredDialers[name] = dialer
	registeredListeners[name] = listener
}

// splitAdminConnectString splits "transport:address", defaulting to tcp
func splitAdminConnectString(adminConnect string) []string {
	connect := strings.SplitN(adminConnect, ":", 2)
	if len(connect) == 1 {
		connect = append(connect, connect[0])
		connect[0] = "tcp"
	}
	return connect
}

func connectTCP(transport, addr string) (net.Conn, error) {
	taddr, err := net.ResolveTCPAddr(transport, addr)
	if err != nil {
		return nil, fmt.Errorf("The connection address specified is not valid: %s", err)
	}
	return net.DialTCP(transport, nil, taddr)
}

func listenTCP(transport, addr string) (net.Listener, error) {
	taddr, err := net.ResolveTCPAddr(transport, addr)
	if err != nil {
		return nil, fmt.Errorf("The admin bind address specified is not valid: %s", err)
	}
	return net.ListenTCP(transport, taddr)
}

func init() {
	registerTransport("tcp", connectTCP, listenTCP)
	registerTransport("tcp4", connectTCP, listenTCP)
	registerTransport("tcp6", connectTCP, listenTCP)
}
