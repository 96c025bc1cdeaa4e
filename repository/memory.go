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
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/tomoncle/datastudy/database"
	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
)

type rwLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// noopLocker guards transaction scoped state, which is only reachable while
// the parent repository holds its write lock.
type noopLocker struct{}

func (noopLocker) Lock()    {}
func (noopLocker) Unlock()  {}
func (noopLocker) RLock()   {}
func (noopLocker) RUnlock() {}

type memoryState[T any, PT EntityPtr[T]] struct {
	records map[int64]T
	seq     int64
}

func (s *memoryState[T, PT]) clone() *memoryState[T, PT] {
	records := make(map[int64]T, len(s.records))
	for id, rec := range s.records {
		records[id] = rec
	}
	return &memoryState[T, PT]{records: records, seq: s.seq}
}

type memoryRepositoryImpl[T any, PT EntityPtr[T]] struct {
	mu     rwLocker
	state  *memoryState[T, PT]
	inTx   bool
	logger database.Logger
}

// NewMemoryRepository returns a Repository keeping copies of the entities in
// process memory. It is safe for concurrent use; readers see a consistent
// snapshot and RunInTx serializes against all other operations.
func NewMemoryRepository[T any, PT EntityPtr[T]]() Repository[T] {
	return &memoryRepositoryImpl[T, PT]{
		mu:     &sync.RWMutex{},
		state:  &memoryState[T, PT]{records: make(map[int64]T)},
		logger: database.GetLogger(),
	}
}

func (r *memoryRepositoryImpl[T, PT]) Insert(ctx context.Context, entity *T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.insert(entity)
}

func (r *memoryRepositoryImpl[T, PT]) Save(ctx context.Context, entity *T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, invalidEntity[T]("is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := PT(entity).GetID()
	if _, ok := r.state.records[id]; ok {
		r.state.records[id] = *entity
		out := *entity
		return &out, nil
	}
	return r.state.insert(entity)
}

func (r *memoryRepositoryImpl[T, PT]) FindByID(ctx context.Context, id int64) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.state.records[id]
	if !ok {
		return nil, notFound[T](id)
	}
	return &rec, nil
}

func (r *memoryRepositoryImpl[T, PT]) FindAll(ctx context.Context, sort types.Sort) ([]*T, error) {
	return r.Query(ctx, nil, sort)
}

func (r *memoryRepositoryImpl[T, PT]) Update(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entity == nil {
		return invalidEntity[T]("is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := PT(entity).GetID()
	if _, ok := r.state.records[id]; !ok {
		return notFound[T](id)
	}
	r.state.records[id] = *entity
	return nil
}

func (r *memoryRepositoryImpl[T, PT]) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.records[id]; !ok {
		return notFound[T](id)
	}
	delete(r.state.records, id)
	return nil
}

func (r *memoryRepositoryImpl[T, PT]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.state.records)), nil
}

func (r *memoryRepositoryImpl[T, PT]) Query(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate[T, PT](spec, sort); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.query(spec, sort), nil
}

func (r *memoryRepositoryImpl[T, PT]) CountBy(ctx context.Context, spec specification.Specification) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validate[T, PT](spec, types.Unsorted()); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, rec := range r.state.records {
		if specification.Matches(spec, PT(&rec)) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepositoryImpl[T, PT]) QueryPage(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Page[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := validate[T, PT](spec, page.GetSort()); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.Paginate(r.state.query(spec, page.GetSort()), page)
}

func (r *memoryRepositoryImpl[T, PT]) QuerySlice(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Slice[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := validate[T, PT](spec, page.GetSort()); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.SliceOf(r.state.query(spec, page.GetSort()), page)
}

func (r *memoryRepositoryImpl[T, PT]) Project(ctx context.Context, spec specification.Specification, sort types.Sort, fields ...string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFields[T, PT](fields); err != nil {
		return nil, err
	}
	if err := validate[T, PT](spec, sort); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := r.state.query(spec, sort)
	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		row := make(map[string]any, len(fields))
		for _, f := range fields {
			row[f], _ = PT(e).Field(f)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *memoryRepositoryImpl[T, PT]) Increment(ctx context.Context, spec specification.Specification, field string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateFields[T, PT]([]string{field}); err != nil {
		return 0, err
	}
	if err := validate[T, PT](spec, types.Unsorted()); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Every record is updated on a copy first so a failing one leaves the
	// store untouched.
	updated := make([]T, 0)
	for _, rec := range r.state.records {
		if !specification.Matches(spec, PT(&rec)) {
			continue
		}
		v, _ := PT(&rec).Field(field)
		if v == nil {
			// NULL + delta stays NULL but the row still counts as matched
			updated = append(updated, rec)
			continue
		}
		n, ok := asInt64(v)
		if !ok {
			return 0, fmt.Errorf("increment %s.%s: not an integer field (%T)", entityName[T](), field, v)
		}
		if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
			return 0, fmt.Errorf("increment %s.%s: overflow at id=%d", entityName[T](), field, PT(&rec).GetID())
		}
		if err := PT(&rec).SetField(field, n+delta); err != nil {
			return 0, err
		}
		updated = append(updated, rec)
	}
	for _, rec := range updated {
		r.state.records[PT(&rec).GetID()] = rec
	}
	return int64(len(updated)), nil
}

func (r *memoryRepositoryImpl[T, PT]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	txID := newTxID()
	tx := &memoryRepositoryImpl[T, PT]{
		mu:     noopLocker{},
		state:  r.state.clone(),
		inTx:   true,
		logger: r.logger,
	}
	r.logger.Debug("memory transaction begin", "tx_id", txID, "entity", entityName[T]())
	// A panic in fn unwinds through the deferred Unlock without the swap below.
	if err := fn(ctx, tx); err != nil {
		r.logger.Debug("memory transaction rollback", "tx_id", txID, "error", err)
		return err
	}
	r.state = tx.state
	r.logger.Debug("memory transaction commit", "tx_id", txID)
	return nil
}

func (r *memoryRepositoryImpl[T, PT]) NativeQuery(context.Context, string, ...interface{}) ([]*T, error) {
	return nil, fmt.Errorf("%w: native query on in-memory %s store", ErrUnsupported, entityName[T]())
}

func (s *memoryState[T, PT]) insert(entity *T) (*T, error) {
	if entity == nil {
		return nil, invalidEntity[T]("is nil")
	}
	id := PT(entity).GetID()
	switch {
	case id < 0:
		return nil, invalidEntity[T](fmt.Sprintf("has negative id %d", id))
	case id == 0:
		s.seq++
		id = s.seq
	default:
		if _, ok := s.records[id]; ok {
			return nil, duplicateID[T](id)
		}
		if id > s.seq {
			s.seq = id
		}
	}
	PT(entity).SetID(id)
	s.records[id] = *entity
	out := *entity
	return &out, nil
}

func (s *memoryState[T, PT]) query(spec specification.Specification, sort types.Sort) []*T {
	out := make([]*T, 0)
	for _, rec := range s.records {
		if specification.Matches(spec, PT(&rec)) {
			out = append(out, &rec)
		}
	}
	orders := sort.Orders()
	slices.SortFunc(out, func(a, b *T) int {
		for _, o := range orders {
			va, _ := PT(a).Field(o.Key)
			vb, _ := PT(b).Field(o.Key)
			n, _ := specification.Compare(va, vb)
			if o.Direction == types.DESC {
				n = -n
			}
			if n != 0 {
				return n
			}
		}
		return cmp.Compare(PT(a).GetID(), PT(b).GetID())
	})
	return out
}

func knownField[T any, PT EntityPtr[T]]() func(string) bool {
	var zero T
	return func(name string) bool {
		_, ok := PT(&zero).Field(name)
		return ok
	}
}

func validate[T any, PT EntityPtr[T]](spec specification.Specification, sort types.Sort) error {
	known := knownField[T, PT]()
	if err := specification.Validate(spec, known); err != nil {
		return err
	}
	if err := sort.Validate(); err != nil {
		return err
	}
	for _, key := range sort.Keys() {
		if !known(key) {
			return types.UnknownSortKey(key)
		}
	}
	return nil
}

func validateFields[T any, PT EntityPtr[T]](fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields selected", specification.ErrUnknownField)
	}
	known := knownField[T, PT]()
	for _, f := range fields {
		if !known(f) {
			return fmt.Errorf("%w: %s has no field %q", specification.ErrUnknownField, entityName[T](), f)
		}
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
