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

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/datastudy/types"
	"github.com/uptrace/bun"
)

// ErrUnknownField is returned when a specification compares a field the
// target entity does not have.
var ErrUnknownField = errors.New("unknown field")

// Fielder exposes the named field values of a record. Names are column names.
type Fielder interface {
	Field(name string) (any, bool)
}

// Specification is a predicate over a record. It can be evaluated in memory
// (IsSatisfiedBy) or rendered as a WHERE clause (Filter) for SQL backends.
// A nil Filter means the specification does not restrict anything.
type Specification interface {
	IsSatisfiedBy(r Fielder) bool
	Fields() []string
	Filter() *types.QueryFilter
}

// Operator is a binary comparison operator.
type Operator string

const (
	Eq Operator = "="
	Ne Operator = "<>"
	Gt Operator = ">"
	Ge Operator = ">="
	Lt Operator = "<"
	Le Operator = "<="
)

// truth is the three-valued result of evaluating a specification: any
// comparison against a missing (nil) field value is unknown, as with SQL NULL,
// and negating unknown keeps it unknown. Only truthTrue matches.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

func (t truth) not() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	}
	return truthUnknown
}

type evaluator interface {
	eval(r Fielder) truth
}

// evaluate falls back to IsSatisfiedBy for specifications defined elsewhere.
func evaluate(spec Specification, r Fielder) truth {
	if e, ok := spec.(evaluator); ok {
		return e.eval(r)
	}
	return truthOf(spec.IsSatisfiedBy(r))
}

type noop struct{}

// Noop matches every record.
func Noop() Specification { return noop{} }

func (noop) IsSatisfiedBy(Fielder) bool { return true }

func (noop) eval(Fielder) truth { return truthTrue }

func (noop) Fields() []string { return nil }

func (noop) Filter() *types.QueryFilter { return nil }

type none struct{}

// None matches no record, e.g. a join condition whose lookup found nothing.
func None() Specification { return none{} }

func (none) IsSatisfiedBy(Fielder) bool { return false }

func (none) eval(Fielder) truth { return truthFalse }

func (none) Fields() []string { return nil }

func (none) Filter() *types.QueryFilter { return types.NewQueryFilter("1 = 0") }

// IsNoop reports whether spec filters nothing. A nil spec is a no-op.
func IsNoop(spec Specification) bool {
	if spec == nil {
		return true
	}
	_, ok := spec.(noop)
	return ok
}

// Comparison compares one field against a constant. A nil Value with Eq or
// Ne tests for a missing value (IS NULL / IS NOT NULL).
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

func (c Comparison) IsSatisfiedBy(r Fielder) bool { return c.eval(r) == truthTrue }

func (c Comparison) eval(r Fielder) truth {
	v, ok := r.Field(c.Field)
	if !ok {
		return truthUnknown
	}
	v, want := normalize(v), normalize(c.Value)
	if want == nil {
		switch c.Op {
		case Eq:
			return truthOf(v == nil)
		case Ne:
			return truthOf(v != nil)
		}
		return truthUnknown
	}
	if v == nil {
		return truthUnknown
	}
	n, ok := Compare(v, want)
	if !ok {
		return truthUnknown
	}
	switch c.Op {
	case Eq:
		return truthOf(n == 0)
	case Ne:
		return truthOf(n != 0)
	case Gt:
		return truthOf(n > 0)
	case Ge:
		return truthOf(n >= 0)
	case Lt:
		return truthOf(n < 0)
	case Le:
		return truthOf(n <= 0)
	}
	return truthUnknown
}

func (c Comparison) Fields() []string { return []string{c.Field} }

func (c Comparison) Filter() *types.QueryFilter {
	if normalize(c.Value) == nil {
		switch c.Op {
		case Eq:
			return types.NewQueryFilter("? IS NULL", bun.Ident(c.Field))
		case Ne:
			return types.NewQueryFilter("? IS NOT NULL", bun.Ident(c.Field))
		}
	}
	return types.NewQueryFilter("? "+string(c.Op)+" ?", bun.Ident(c.Field), c.Value)
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

func compare(field string, op Operator, value any) Specification {
	if isEmpty(value) {
		return Noop()
	}
	return Comparison{Field: field, Op: op, Value: value}
}

// EqualTo matches records whose field equals value. An empty value (nil or "")
// yields Noop so that unset filters are ignored.
func EqualTo(field string, value any) Specification { return compare(field, Eq, value) }

func NotEqual(field string, value any) Specification { return compare(field, Ne, value) }

func GreaterThan(field string, value any) Specification { return compare(field, Gt, value) }

func GreaterThanOrEqual(field string, value any) Specification { return compare(field, Ge, value) }

func LessThan(field string, value any) Specification { return compare(field, Lt, value) }

func LessThanOrEqual(field string, value any) Specification { return compare(field, Le, value) }

// Membership matches records whose field equals any of Values.
type Membership struct {
	Field  string
	Values []any
}

// In matches records whose field is one of values; no values yields Noop.
func In[V any](field string, values ...V) Specification {
	vs := make([]any, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		return Noop()
	}
	return Membership{Field: field, Values: vs}
}

func (m Membership) IsSatisfiedBy(r Fielder) bool { return m.eval(r) == truthTrue }

func (m Membership) eval(r Fielder) truth {
	v, ok := r.Field(m.Field)
	if !ok || normalize(v) == nil {
		return truthUnknown
	}
	for _, want := range m.Values {
		if n, ok := Compare(v, want); ok && n == 0 {
			return truthTrue
		}
	}
	return truthFalse
}

func (m Membership) Fields() []string { return []string{m.Field} }

func (m Membership) Filter() *types.QueryFilter {
	return types.NewQueryFilter("? IN (?)", bun.Ident(m.Field), bun.In(m.Values))
}

// Junction is a conjunction or disjunction of at least two specifications.
type Junction struct {
	Disjunction bool
	Parts       []Specification
}

// And is true iff every operand is; no-op operands are absorbed and nested
// conjunctions are flattened.
func And(specs ...Specification) Specification { return junction(false, specs) }

// Or is true iff any operand is; no-op operands are absorbed.
func Or(specs ...Specification) Specification { return junction(true, specs) }

func junction(disjunction bool, specs []Specification) Specification {
	parts := make([]Specification, 0, len(specs))
	for _, s := range specs {
		if IsNoop(s) {
			continue
		}
		if j, ok := s.(Junction); ok && j.Disjunction == disjunction {
			parts = append(parts, j.Parts...)
			continue
		}
		parts = append(parts, s)
	}
	switch len(parts) {
	case 0:
		return Noop()
	case 1:
		return parts[0]
	}
	return Junction{Disjunction: disjunction, Parts: parts}
}

func (j Junction) IsSatisfiedBy(r Fielder) bool { return j.eval(r) == truthTrue }

// eval short-circuits on the deciding value (true for Or, false for And);
// otherwise any unknown operand makes the result unknown.
func (j Junction) eval(r Fielder) truth {
	decisive := truthOf(j.Disjunction)
	result := decisive.not()
	for _, p := range j.Parts {
		switch evaluate(p, r) {
		case decisive:
			return decisive
		case truthUnknown:
			result = truthUnknown
		}
	}
	return result
}

func (j Junction) Fields() []string {
	var fields []string
	for _, p := range j.Parts {
		fields = append(fields, p.Fields()...)
	}
	return fields
}

func (j Junction) Filter() *types.QueryFilter {
	sep := " AND "
	if j.Disjunction {
		sep = " OR "
	}
	schemas := make([]string, 0, len(j.Parts))
	var args []interface{}
	for _, p := range j.Parts {
		f := p.Filter()
		if f == nil {
			continue
		}
		schemas = append(schemas, "("+f.Schema+")")
		args = append(args, f.Args...)
	}
	if len(schemas) == 0 {
		return nil
	}
	return types.NewQueryFilter(strings.Join(schemas, sep), args...)
}

// Negation inverts a specification.
type Negation struct {
	Spec Specification
}

// Not inverts spec; the negation of a no-op stays a no-op.
func Not(spec Specification) Specification {
	if IsNoop(spec) {
		return Noop()
	}
	if n, ok := spec.(Negation); ok {
		return n.Spec
	}
	return Negation{Spec: spec}
}

func (n Negation) IsSatisfiedBy(r Fielder) bool { return n.eval(r) == truthTrue }

func (n Negation) eval(r Fielder) truth { return evaluate(n.Spec, r).not() }

func (n Negation) Fields() []string { return n.Spec.Fields() }

func (n Negation) Filter() *types.QueryFilter {
	f := n.Spec.Filter()
	if f == nil {
		return nil
	}
	return types.NewQueryFilter("NOT ("+f.Schema+")", f.Args...)
}

// Filter renders spec as a WHERE clause, nil when it filters nothing.
func Filter(spec Specification) *types.QueryFilter {
	if IsNoop(spec) {
		return nil
	}
	return spec.Filter()
}

// Validate checks every compared field with known.
func Validate(spec Specification, known func(field string) bool) error {
	if IsNoop(spec) {
		return nil
	}
	for _, f := range spec.Fields() {
		if !known(f) {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	return nil
}

// Matches evaluates spec against r; a nil or no-op spec matches everything.
func Matches(spec Specification, r Fielder) bool {
	if IsNoop(spec) {
		return true
	}
	return spec.IsSatisfiedBy(r)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return isEmpty(rv.Elem().Interface())
	case reflect.String:
		return rv.Len() == 0
	}
	return false
}
