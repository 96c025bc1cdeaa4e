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
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/datastudy/database"
	"github.com/tomoncle/datastudy/specification"
	"github.com/tomoncle/datastudy/types"
)

type baseRepositoryImpl[T any, PT EntityPtr[T]] struct {
	db     bun.IDB
	root   *bun.DB
	table  *schema.Table
	inTx   bool
	logger database.Logger
}

// NewRepository returns a generic repository backed by the provided Bun DB.
func NewRepository[T any, PT EntityPtr[T]](db *bun.DB) Repository[T] {
	return &baseRepositoryImpl[T, PT]{
		db:     db,
		root:   db,
		table:  db.Table(reflect.TypeOf((*T)(nil)).Elem()),
		logger: database.GetLogger(),
	}
}

func newTxID() string { return uuid.NewString() }

func (r *baseRepositoryImpl[T, PT]) Dialect() schema.Dialect { return r.root.Dialect() }

func (r *baseRepositoryImpl[T, PT]) Insert(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, invalidEntity[T]("is nil")
	}
	id := PT(entity).GetID()
	if id < 0 {
		return nil, invalidEntity[T](fmt.Sprintf("has negative id %d", id))
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, r.translate(err, id)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, PT]) Save(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, invalidEntity[T]("is nil")
	}
	if PT(entity).GetID() == 0 {
		return r.Insert(ctx, entity)
	}
	if err := r.upsert(ctx, entity); err != nil {
		return nil, r.translate(err, PT(entity).GetID())
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, PT]) FindByID(ctx context.Context, id int64) (*T, error) {
	entity := new(T)
	err := r.db.NewSelect().Model(entity).Where("? = ?", bun.Ident("id"), id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound[T](id)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, PT]) FindAll(ctx context.Context, sort types.Sort) ([]*T, error) {
	return r.Query(ctx, nil, sort)
}

func (r *baseRepositoryImpl[T, PT]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return invalidEntity[T]("is nil")
	}
	res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return r.affected(res, PT(entity).GetID())
}

func (r *baseRepositoryImpl[T, PT]) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident("id"), id).Exec(ctx)
	if err != nil {
		return err
	}
	return r.affected(res, id)
}

func (r *baseRepositoryImpl[T, PT]) Count(ctx context.Context) (int64, error) {
	return r.CountBy(ctx, nil)
}

func (r *baseRepositoryImpl[T, PT]) Query(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error) {
	if err := r.validate(spec, sort); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	query = r.order(filterSelect(query, spec), sort)
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, PT]) CountBy(ctx context.Context, spec specification.Specification) (int64, error) {
	if err := r.validate(spec, types.Unsorted()); err != nil {
		return 0, err
	}
	total, err := filterSelect(r.db.NewSelect().Model((*T)(nil)), spec).Count(ctx)
	return int64(total), err
}

func (r *baseRepositoryImpl[T, PT]) QueryPage(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Page[T], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := r.validate(spec, page.GetSort()); err != nil {
		return nil, err
	}
	var result *types.Page[T]
	// Count and fetch share one snapshot so the total matches the content.
	err := r.inTransaction(ctx, true, func(ctx context.Context, db bun.IDB) error {
		entities := make([]*T, 0)
		query := filterSelect(db.NewSelect().Model(&entities), spec)
		total, err := query.Count(ctx)
		if err != nil {
			return err
		}
		if total == 0 || page.GetOffset() >= total {
			result = types.NewPage[T](nil, page, int64(total))
			return nil
		}
		err = r.order(query, page.GetSort()).
			Offset(page.GetOffset()).
			Limit(page.GetPageSize()).
			Scan(ctx)
		if err != nil {
			return err
		}
		result = types.NewPage(entities, page, int64(total))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *baseRepositoryImpl[T, PT]) QuerySlice(ctx context.Context, spec specification.Specification, page types.PageRequest) (*types.Slice[T], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := r.validate(spec, page.GetSort()); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	query := filterSelect(r.db.NewSelect().Model(&entities), spec)
	err := r.order(query, page.GetSort()).
		Offset(page.GetOffset()).
		Limit(page.GetPageSize() + 1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types.NewSlice(entities, page), nil
}

func (r *baseRepositoryImpl[T, PT]) Project(ctx context.Context, spec specification.Specification, sort types.Sort, fields ...string) ([]map[string]any, error) {
	if err := r.validateFields(fields); err != nil {
		return nil, err
	}
	if err := r.validate(spec, sort); err != nil {
		return nil, err
	}
	rows := make([]map[string]interface{}, 0)
	query := r.db.NewSelect().Model((*T)(nil)).Column(fields...)
	query = r.order(filterSelect(query, spec), sort)
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *baseRepositoryImpl[T, PT]) Increment(ctx context.Context, spec specification.Specification, field string, delta int64) (int64, error) {
	if err := r.validateFields([]string{field}); err != nil {
		return 0, err
	}
	if err := r.validate(spec, types.Unsorted()); err != nil {
		return 0, err
	}
	query := r.db.NewUpdate().
		Model((*T)(nil)).
		Set("? = ? + ?", bun.Ident(field), bun.Ident(field), delta)
	if f := specification.Filter(spec); f != nil {
		query = query.Where(f.Schema, f.Args...)
	} else {
		query = query.Where("1 = 1")
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T, PT]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	return r.inTransaction(ctx, false, func(ctx context.Context, db bun.IDB) error {
		if r.inTx {
			return fn(ctx, r)
		}
		return fn(ctx, &baseRepositoryImpl[T, PT]{
			db:     db,
			root:   r.root,
			table:  r.table,
			inTx:   true,
			logger: r.logger,
		})
	})
}

func (r *baseRepositoryImpl[T, PT]) NativeQuery(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	entities := make([]*T, 0)
	if err := r.db.NewRaw(query, args...).Scan(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// inTransaction runs fn on the current transaction, or on a new one that is
// committed when fn returns nil.
func (r *baseRepositoryImpl[T, PT]) inTransaction(ctx context.Context, readOnly bool, fn func(ctx context.Context, db bun.IDB) error) error {
	if r.inTx {
		return fn(ctx, r.db)
	}
	txID := newTxID()
	r.logger.Debug("transaction begin", "tx_id", txID, "entity", entityName[T](), "read_only", readOnly)
	err := r.root.RunInTx(ctx, r.txOptions(readOnly), func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		r.logger.Debug("transaction rollback", "tx_id", txID, "error", err)
		return err
	}
	r.logger.Debug("transaction commit", "tx_id", txID)
	return nil
}

// txOptions returns nil for SQLite, which accepts neither isolation levels
// nor read-only transactions through database/sql.
func (r *baseRepositoryImpl[T, PT]) txOptions(readOnly bool) *sql.TxOptions {
	if r.root.Dialect().Name() == dialect.SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: readOnly}
}

func (r *baseRepositoryImpl[T, PT]) order(query *bun.SelectQuery, sort types.Sort) *bun.SelectQuery {
	byID := false
	for _, o := range sort.Orders() {
		query = query.OrderExpr("? "+o.Direction.String(), bun.Ident(o.Key))
		byID = byID || o.Key == "id"
	}
	if !byID {
		query = query.OrderExpr("? ASC", bun.Ident("id"))
	}
	return query
}

func filterSelect(query *bun.SelectQuery, spec specification.Specification) *bun.SelectQuery {
	if f := specification.Filter(spec); f != nil {
		query = query.Where(f.Schema, f.Args...)
	}
	return query
}

func (r *baseRepositoryImpl[T, PT]) validate(spec specification.Specification, sort types.Sort) error {
	if err := specification.Validate(spec, r.table.HasField); err != nil {
		return err
	}
	if err := sort.Validate(); err != nil {
		return err
	}
	for _, key := range sort.Keys() {
		if !r.table.HasField(key) {
			return types.UnknownSortKey(key)
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T, PT]) validateFields(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields selected", specification.ErrUnknownField)
	}
	for _, f := range fields {
		if !r.table.HasField(f) {
			return fmt.Errorf("%w: %s has no field %q", specification.ErrUnknownField, entityName[T](), f)
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T, PT]) affected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound[T](id)
	}
	return nil
}

func (r *baseRepositoryImpl[T, PT]) translate(err error, id int64) error {
	if is, kind := database.IsSqlError(err); is && kind == database.DuplicateKeyErr {
		return fmt.Errorf("%w: %v", duplicateID[T](id), err)
	}
	return err
}

// upsert writes entity by primary key with the dialect's native upsert
// clause, falling back to update-then-insert.
func (r *baseRepositoryImpl[T, PT]) upsert(ctx context.Context, entity *T) error {
	fields := make([]string, 0, len(r.table.DataFields))
	for _, f := range r.table.DataFields {
		fields = append(fields, f.Name)
	}
	if len(fields) == 0 {
		return fmt.Errorf("upsert %s: no data fields", entityName[T]())
	}

	switch {
	case r.root.HasFeature(feature.InsertOnConflict):
		return r.upsertWithPostgresqlOrSQLite(ctx, fields, entity)
	case r.root.HasFeature(feature.InsertOnDuplicateKey):
		return r.upsertWithMySQL(ctx, fields, entity)
	default:
		return r.upsertFallback(ctx, entity)
	}
}

func (r *baseRepositoryImpl[T, PT]) upsertWithMySQL(ctx context.Context, fields []string, entity *T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("`%s` = VALUES(`%s`)", field, field))
	}
	_, err := r.db.NewInsert().
		Model(entity).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T, PT]) upsertWithPostgresqlOrSQLite(ctx context.Context, fields []string, entity *T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf(`"%s" = EXCLUDED."%s"`, field, field))
	}
	_, err := r.db.NewInsert().
		Model(entity).
		On("CONFLICT (id) DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T, PT]) upsertFallback(ctx context.Context, entity *T) error {
	res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.db.NewInsert().Model(entity).Exec(ctx)
	return err
}
