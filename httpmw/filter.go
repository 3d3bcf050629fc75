// Copyright 2026 The Otelware Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpmw

import (
	"net/http"
	"regexp"
	"strings"
)

// Filter decides whether a request is traced. Returning false skips span
// creation entirely: the handler runs without instrumentation and no tracing
// data is recorded for the call.
type Filter func(*http.Request) bool

// pathFilter handles path exclusion logic for tracing.
// It supports exact paths, prefixes, and regex patterns.
type pathFilter struct {
	paths    map[string]bool
	prefixes []string
	patterns []*regexp.Regexp
}

// newPathFilter creates a new path filter.
func newPathFilter() *pathFilter {
	return &pathFilter{
		paths: make(map[string]bool),
	}
}

// addPaths adds exact paths to exclude.
func (pf *pathFilter) addPaths(paths ...string) {
	for _, p := range paths {
		pf.paths[p] = true
	}
}

// addPrefixes adds path prefixes to exclude.
func (pf *pathFilter) addPrefixes(prefixes ...string) {
	pf.prefixes = append(pf.prefixes, prefixes...)
}

// addPatterns adds compiled regex patterns to exclude.
func (pf *pathFilter) addPatterns(patterns ...*regexp.Regexp) {
	pf.patterns = append(pf.patterns, patterns...)
}

// shouldExclude returns true if the path should be excluded from tracing.
func (pf *pathFilter) shouldExclude(path string) bool {
	if pf == nil {
		return false
	}

	// Check exact paths (O(1) lookup)
	if pf.paths[path] {
		return true
	}

	// Check prefixes
	for _, prefix := range pf.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	// Check patterns
	for _, pattern := range pf.patterns {
		if pattern.MatchString(path) {
			return true
		}
	}

	return false
}
