//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import "strings"

// parseEndpointHost extracts the hostname from a voice endpoint as delivered
// by the main gateway. Endpoints may carry a scheme and historically arrive
// with a bogus port suffix ("host:80") that must not be used for the dial.
func parseEndpointHost(endpoint string) (string, error) {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && isPortSuffix(host[i+1:]) {
		host = host[:i]
	}
	if host == "" {
		return "", ErrMalformedEndpoint
	}
	return host, nil
}

func isPortSuffix(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
