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
	"context"

	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
)

// Entity is implemented by pointers to persistent records. Field names are
// column names; id is assigned by the store on first insert.
type Entity interface {
	specification.Example
	GetID() int64
	SetID(id int64)
	SetField(name string, value any) error
}

// EntityPtr ties a record struct T to its pointer type implementing Entity,
// so repositories can be instantiated as NewRepository[model.Member](db).
type EntityPtr[T any] interface {
	*T
	Entity
}

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	// Insert stores a new entity, assigning an id when it has none. A supplied
	// id that already exists fails with ErrDuplicateID.
	Insert(ctx context.Context, entity *T) (*T, error)

	// Save inserts entities without id and upserts the others by id.
	Save(ctx context.Context, entity *T) (*T, error)

	// FindByID fails with ErrNotFound when id is absent.
	FindByID(ctx context.Context, id int64) (*T, error)

	FindAll(ctx context.Context, sort types.Sort) ([]*T, error)

	// Update fails with ErrNotFound when the entity id is absent.
	Update(ctx context.Context, entity *T) error

	// Delete fails with ErrNotFound when id is absent.
	Delete(ctx context.Context, id int64) error

	Count(ctx context.Context) (int64, error)
}

// SpecificationRepository runs specification based queries. A nil or no-op
// specification matches every entity. Results are ordered by sort with the id
// as final ascending tie-break.
type SpecificationRepository[T any] interface {
	Query(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error)

	CountBy(ctx context.Context, spec specification.Specification) (int64, error)

	// QueryPage counts all matches and fetches one page, atomically.
	QueryPage(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Page[T], error)

	// QuerySlice fetches one page plus one lookahead entity and no count.
	QuerySlice(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Slice[T], error)

	// Project returns only the given columns of the matching entities.
	Project(ctx context.Context, spec specification.Specification, sort types.Sort, fields ...string) ([]map[string]any, error)

	// Increment adds delta to a numeric field of every match in one bulk
	// operation and returns the number of affected entities.
	Increment(ctx context.Context, spec specification.Specification, field string, delta int64) (int64, error)
}

// TransactionRepository scopes several operations into one transaction that
// commits when fn returns nil and rolls back on error or panic.
type TransactionRepository[T any] interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error
}

// NativeQueryRepository maps a raw SQL statement onto entities.
type NativeQueryRepository[T any] interface {
	NativeQuery(ctx context.Context, query string, args ...interface{}) ([]*T, error)
}

// Repository combines CRUD, specification queries, transactions and native
// queries. Backends that cannot run raw SQL return ErrUnsupported.
type Repository[T any] interface {
	CrudRepository[T]
	SpecificationRepository[T]
	TransactionRepository[T]
	NativeQueryRepository[T]
}
