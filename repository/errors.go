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

package repository

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrNotFound is returned when an operation references an absent id.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateID is returned when Insert is given an id that already exists.
	ErrDuplicateID = errors.New("entity id already exists")

	// ErrInvalidEntity is returned for nil entities or negative ids.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUnsupported is returned by backends that cannot run an operation.
	ErrUnsupported = errors.New("operation not supported")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateID reports whether err is, or wraps, ErrDuplicateID.
func IsDuplicateID(err error) bool { return errors.Is(err, ErrDuplicateID) }

func entityName[T any]() string {
	return strings.ToLower(reflect.TypeOf((*T)(nil)).Elem().Name())
}

func notFound[T any](id int64) error {
	return fmt.Errorf("%w: %s id=%d", ErrNotFound, entityName[T](), id)
}

func duplicateID[T any](id int64) error {
	return fmt.Errorf("%w: %s id=%d", ErrDuplicateID, entityName[T](), id)
}

func invalidEntity[T any](reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidEntity, entityName[T](), reason)
}
