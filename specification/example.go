/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package specification

import "reflect"

// Example is a record used as a query-by-example template.
type Example interface {
	Fielder
	FieldNames() []string
}

// ExampleMatcher decides which example fields take part in the match. By default
// zero-valued fields are treated as unset and skipped.
type ExampleMatcher struct {
	ignored  map[string]struct{}
	included map[string]struct{}
}

// Matching returns the default matcher.
func Matching() ExampleMatcher {
	return ExampleMatcher{}
}

// WithIgnorePaths never matches on the given fields.
func (m ExampleMatcher) WithIgnorePaths(paths ...string) ExampleMatcher {
	m.ignored = extend(m.ignored, paths)
	return m
}

// WithIncludeZeroValues matches the given fields even when the example holds
// their zero value.
func (m ExampleMatcher) WithIncludeZeroValues(paths ...string) ExampleMatcher {
	m.included = extend(m.included, paths)
	return m
}

func (m ExampleMatcher) isIgnored(path string) bool {
	_, ok := m.ignored[path]
	return ok
}

func (m ExampleMatcher) keepsZero(path string) bool {
	_, ok := m.included[path]
	return ok
}

// ByExample builds the conjunction of equality checks on the example's fields.
func ByExample(example Example, matcher ExampleMatcher) Specification {
	var specs []Specification
	for _, name := range example.FieldNames() {
		if matcher.isIgnored(name) {
			continue
		}
		v, ok := example.Field(name)
		if !ok {
			continue
		}
		if isZero(v) && !matcher.keepsZero(name) {
			continue
		}
		if isEmpty(v) {
			specs = append(specs, Comparison{Field: name, Op: Eq, Value: v})
			continue
		}
		specs = append(specs, EqualTo(name, v))
	}
	return And(specs...)
}

func extend(set map[string]struct{}, paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(paths))
	for k := range set {
		out[k] = struct{}{}
	}
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
