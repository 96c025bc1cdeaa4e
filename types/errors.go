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

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPageRequest is returned for a non-positive size or a negative page.
	ErrInvalidPageRequest = errors.New("invalid page request")

	// ErrInvalidSort is returned for an unknown sort key or direction.
	ErrInvalidSort = errors.New("invalid sort")
)

func invalidPagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPageRequest, fmt.Sprintf(format, args...))
}

func invalidSortf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSort, fmt.Sprintf(format, args...))
}

// UnknownSortKey reports a sort key the target entity does not have.
func UnknownSortKey(key string) error {
	return invalidSortf("unknown sort key %q", key)
}
