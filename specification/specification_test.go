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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type record map[string]any

func (r record) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

func (r record) FieldNames() []string {
	names := make([]string, 0, len(r))
	for _, k := range []string{"id", "username", "age", "team_id"} {
		if _, ok := r[k]; ok {
			names = append(names, k)
		}
	}
	return names
}

var records = []record{
	{"id": int64(1), "username": "Member", "age": 10, "team_id": int64(1)},
	{"id": int64(2), "username": "Member", "age": 20, "team_id": int64(2)},
	{"id": int64(3), "username": "Other", "age": 30, "team_id": int64(0)},
}

func matching(spec Specification) []int64 {
	var ids []int64
	for _, r := range records {
		if Matches(spec, r) {
			ids = append(ids, r["id"].(int64))
		}
	}
	return ids
}

func TestEqualToAndGreaterThan(t *testing.T) {
	spec := And(EqualTo("username", "Member"), GreaterThan("age", 15))
	assert.Equal(t, []int64{2}, matching(spec))
}

func TestEmptyValueIsNoop(t *testing.T) {
	assert.True(t, IsNoop(EqualTo("username", "")))
	assert.True(t, IsNoop(EqualTo("username", nil)))
	var name *string
	assert.True(t, IsNoop(EqualTo("username", name)))
	assert.False(t, IsNoop(EqualTo("age", 0)))
}

func TestAndAbsorbsNoop(t *testing.T) {
	base := GreaterThanOrEqual("age", 20)
	for _, spec := range []Specification{
		And(base, Noop()),
		And(Noop(), base),
		And(base, nil),
		And(base, EqualTo("username", "")),
	} {
		assert.Equal(t, matching(base), matching(spec))
		assert.Equal(t, base, spec)
	}
	assert.True(t, IsNoop(And()))
	assert.True(t, IsNoop(And(Noop(), Noop())))
}

func TestAndIsAssociative(t *testing.T) {
	a := EqualTo("username", "Member")
	b := GreaterThan("age", 5)
	c := LessThan("age", 25)
	left := And(And(a, b), c)
	right := And(a, And(b, c))
	assert.Equal(t, matching(left), matching(right))
	assert.Equal(t, left, right)
	assert.Equal(t, []int64{1, 2}, matching(left))
}

func TestOrAndNot(t *testing.T) {
	spec := Or(EqualTo("username", "Other"), LessThanOrEqual("age", 10))
	assert.Equal(t, []int64{1, 3}, matching(spec))
	assert.Equal(t, []int64{2}, matching(Not(spec)))
	assert.Equal(t, spec, Not(Not(spec)))
	assert.True(t, IsNoop(Not(Noop())))
	assert.Equal(t, []int64{2, 3}, matching(NotEqual("age", 10)))
}

func TestIn(t *testing.T) {
	assert.Equal(t, []int64{1, 2}, matching(In("team_id", 1, 2)))
	assert.Equal(t, []int64{3}, matching(In("username", "Other", "Nobody")))
	assert.True(t, IsNoop(In[string]("username")))
}

func TestUnknownFieldNeverMatches(t *testing.T) {
	assert.Empty(t, matching(EqualTo("nickname", "Member")))
}

func TestFieldsAndValidate(t *testing.T) {
	spec := And(EqualTo("username", "m1"), Or(GreaterThan("age", 1), In("team_id", 3)))
	assert.Equal(t, []string{"username", "age", "team_id"}, spec.Fields())

	known := func(f string) bool { return f != "team_id" }
	assert.ErrorIs(t, Validate(spec, known), ErrUnknownField)
	assert.NoError(t, Validate(EqualTo("username", "x"), known))
	assert.NoError(t, Validate(nil, known))
}

func TestFilterRendering(t *testing.T) {
	assert.Nil(t, Filter(Noop()))
	assert.Nil(t, Filter(nil))

	f := Filter(And(EqualTo("username", "m1"), Not(GreaterThan("age", 15))))
	require.NotNil(t, f)
	assert.Equal(t, "(? = ?) AND (NOT (? > ?))", f.Schema)
	assert.Equal(t, []interface{}{bun.Ident("username"), "m1", bun.Ident("age"), 15}, f.Args)

	in := Filter(Or(In("id", int64(1), int64(2)), EqualTo("username", "x")))
	require.NotNil(t, in)
	assert.Equal(t, "(? IN (?)) OR (? = ?)", in.Schema)
	assert.Len(t, in.Args, 4)
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b any
		want int
		ok   bool
	}{
		{10, int64(10), 0, true},
		{int32(3), 2.5, 1, true},
		{uint8(1), int64(2), -1, true},
		{"a", "b", -1, true},
		{[]byte("b"), "b", 0, true},
		{false, true, -1, true},
		{nil, 1, -1, true},
		{1, nil, 1, true},
		{nil, nil, 0, true},
		{"1", 1, 0, false},
		{time.Unix(10, 0), time.Unix(5, 0), 1, true},
	}
	for _, tc := range cases {
		n, ok := Compare(tc.a, tc.b)
		assert.Equal(t, tc.ok, ok, "%v vs %v", tc.a, tc.b)
		if tc.ok {
			assert.Equal(t, tc.want, n, "%v vs %v", tc.a, tc.b)
		}
	}
}

func TestByExample(t *testing.T) {
	example := record{"id": int64(0), "username": "Member", "age": 0, "team_id": int64(2)}

	spec := ByExample(example, Matching())
	assert.Equal(t, []int64{2}, matching(spec))
	assert.Equal(t, []string{"username", "team_id"}, spec.Fields())

	spec = ByExample(example, Matching().WithIgnorePaths("team_id"))
	assert.Equal(t, []int64{1, 2}, matching(spec))

	spec = ByExample(example, Matching().WithIncludeZeroValues("age"))
	assert.Empty(t, matching(spec))

	assert.True(t, IsNoop(ByExample(record{"username": ""}, Matching())))
}

func TestNone(t *testing.T) {
	assert.Empty(t, matching(None()))
	assert.False(t, IsNoop(None()))
	assert.Equal(t, "1 = 0", Filter(None()).Schema)
	assert.Empty(t, matching(And(None(), Noop())))
	assert.Equal(t, []int64{1, 2, 3}, matching(Or(None(), Noop(), NotEqual("username", "x"))))
}

func TestNullFieldSemantics(t *testing.T) {
	teamless := record{"id": int64(9), "username": "Solo", "age": 40, "team_id": nil}

	assert.False(t, Matches(EqualTo("team_id", int64(5)), teamless))
	assert.False(t, Matches(NotEqual("team_id", int64(5)), teamless))
	assert.False(t, Matches(Not(EqualTo("team_id", int64(5))), teamless))
	assert.False(t, Matches(In("team_id", int64(1), int64(5)), teamless))
	assert.False(t, Matches(Not(In("team_id", int64(1), int64(5))), teamless))
	assert.False(t, Matches(GreaterThan("team_id", int64(0)), teamless))

	// unknown OR true is true, unknown AND true stays unknown
	assert.True(t, Matches(Or(NotEqual("team_id", int64(5)), EqualTo("username", "Solo")), teamless))
	assert.False(t, Matches(And(NotEqual("team_id", int64(5)), EqualTo("username", "Solo")), teamless))
	assert.False(t, Matches(Not(And(NotEqual("team_id", int64(5)), EqualTo("username", "Solo"))), teamless))
	assert.True(t, Matches(Not(And(NotEqual("team_id", int64(5)), EqualTo("username", "x"))), teamless))

	isNull := Comparison{Field: "team_id", Op: Eq}
	notNull := Comparison{Field: "team_id", Op: Ne}
	assert.True(t, Matches(isNull, teamless))
	assert.False(t, Matches(notNull, teamless))
	assert.Empty(t, matching(isNull))
	assert.Equal(t, []int64{1, 2, 3}, matching(notNull))

	assert.Equal(t, "? IS NULL", Filter(isNull).Schema)
	assert.Equal(t, []interface{}{bun.Ident("team_id")}, Filter(isNull).Args)
	assert.Equal(t, "? IS NOT NULL", Filter(notNull).Schema)

	spec := ByExample(record{"team_id": nil}, Matching().WithIncludeZeroValues("team_id"))
	assert.True(t, Matches(spec, teamless))
	assert.Equal(t, "? IS NULL", Filter(spec).Schema)
}
