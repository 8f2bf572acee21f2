package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	return NewBuilder(nil, NewSQLiteGrammar(), NewProcessor())
}

func TestSimpleSelect(t *testing.T) {
	sql, bindings := testBuilder().From("users").Where("id", "=", 1).ToSQL()

	assert.Equal(t, `select * from "users" where "id" = ?`, sql)
	assert.Equal(t, []any{1}, bindings)
}

func TestOperatorShortcut(t *testing.T) {
	full := testBuilder().From("users").Where("name", "=", "Alice")
	short := testBuilder().From("users").Where("name", "Alice")

	assert.Equal(t, full.wheres, short.wheres)

	sql, bindings := short.ToSQL()
	assert.Equal(t, `select * from "users" where "name" = ?`, sql)
	assert.Equal(t, []any{"Alice"}, bindings)
}

func TestUnrecognizedOperatorBecomesValue(t *testing.T) {
	sql, bindings := testBuilder().From("users").Where("name", "bogus", "x").ToSQL()

	assert.Equal(t, `select * from "users" where "name" = ?`, sql)
	assert.Equal(t, []any{"bogus"}, bindings)
}

func TestNestedOrWhere(t *testing.T) {
	b := testBuilder().From("users").
		Where("active", "=", 1).
		OrWhere(func(q *Builder) {
			q.Where("age", ">", 18).Where("verified", "=", 1)
		})

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select * from "users" where "active" = ? or ("age" > ? and "verified" = ?)`, sql)
	assert.Equal(t, []any{1, 18, 1}, bindings)
}

func TestNestedBindingsMergeInOrder(t *testing.T) {
	b := testBuilder().From("users").Where("a", "=", 1)
	before := append([]any(nil), b.bindings...)

	b.WhereNested(func(q *Builder) {
		q.Where("b", "=", 2).OrWhere("c", "=", 3)
	})

	assert.Equal(t, append(before, 2, 3), b.bindings)
}

func TestEmptyNestedGroupAddsNothing(t *testing.T) {
	b := testBuilder().From("users").WhereNested(func(q *Builder) {})

	assert.Empty(t, b.wheres)
	assert.Empty(t, b.bindings)

	sql, _ := b.ToSQL()
	assert.Equal(t, `select * from "users"`, sql)
}

func TestWhereSubSelect(t *testing.T) {
	b := testBuilder().From("users").
		Where("id", "=", func(q *Builder) {
			q.From("posts").Select("user_id").Where("votes", ">", 100)
		})

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select * from "users" where "id" = (select "user_id" from "posts" where "votes" > ?)`, sql)
	assert.Equal(t, []any{100}, bindings)
}

func TestWhereInSubSelect(t *testing.T) {
	b := testBuilder().From("a").
		WhereIn("id", func(q *Builder) {
			q.From("b").Select("a_id").Where("ok", "=", 1)
		})

	sql, bindings := b.ToSQL()
	assert.Contains(t, sql, `"id" in (select "a_id" from "b" where "ok" = ?)`)
	assert.Equal(t, []any{1}, bindings)
}

func TestWhereIn(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereIn("id", []any{1, 2, 3}).ToSQL()

	assert.Equal(t, `select * from "users" where "id" in (?, ?, ?)`, sql)
	assert.Equal(t, []any{1, 2, 3}, bindings)
}

func TestWhereInTypedSlice(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereIn("name", []string{"a", "b"}).ToSQL()

	assert.Equal(t, `select * from "users" where "name" in (?, ?)`, sql)
	assert.Equal(t, []any{"a", "b"}, bindings)
}

func TestWhereNotIn(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereNotIn("id", []int{1, 2}).ToSQL()

	assert.Equal(t, `select * from "users" where "id" not in (?, ?)`, sql)
	assert.Equal(t, []any{1, 2}, bindings)
}

func TestWhereInEmptySet(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereIn("id", []any{}).ToSQL()
	assert.Equal(t, `select * from "users" where 0 = 1`, sql)
	assert.Empty(t, bindings)

	sql, bindings = testBuilder().From("users").WhereNotIn("id", []any{}).ToSQL()
	assert.Equal(t, `select * from "users" where 1 = 1`, sql)
	assert.Empty(t, bindings)
}

func TestWhereNull(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereNull("deleted_at").ToSQL()
	assert.Equal(t, `select * from "users" where "deleted_at" is null`, sql)
	assert.Empty(t, bindings)

	sql, _ = testBuilder().From("users").OrWhere("a", "=", 1).WhereNotNull("email").ToSQL()
	assert.Equal(t, `select * from "users" where "a" = ? and "email" is not null`, sql)
}

func TestNilValueRoutesToNullCheck(t *testing.T) {
	sql, bindings := testBuilder().From("users").Where("email", "=", nil).ToSQL()
	assert.Equal(t, `select * from "users" where "email" is null`, sql)
	assert.Empty(t, bindings)

	sql, _ = testBuilder().From("users").Where("email", "!=", nil).ToSQL()
	assert.Equal(t, `select * from "users" where "email" is not null`, sql)
}

func TestLoneOperatorRoutesToNullCheck(t *testing.T) {
	sql, _ := testBuilder().From("users").Where("email", "=").ToSQL()
	assert.Equal(t, `select * from "users" where "email" is null`, sql)

	sql, _ = testBuilder().From("users").Where("email", "<>").ToSQL()
	assert.Equal(t, `select * from "users" where "email" is not null`, sql)
}

func TestWhereBetween(t *testing.T) {
	sql, bindings := testBuilder().From("users").WhereBetween("age", []any{25, 32}).ToSQL()

	assert.Equal(t, `select * from "users" where "age" between ? and ?`, sql)
	assert.Equal(t, []any{25, 32}, bindings)
}

func TestWhereBetweenArity(t *testing.T) {
	b := testBuilder().From("users").WhereBetween("age", []any{25})

	require.Error(t, b.Err())
	assert.ErrorIs(t, b.Err(), ErrBadArgument)
}

func TestWhereExists(t *testing.T) {
	b := testBuilder().From("orders").
		WhereExists(func(q *Builder) {
			q.From("items").WhereRaw(`"items"."order_id" = "orders"."id"`)
		})

	sql, _ := b.ToSQL()
	assert.Equal(t, `select * from "orders" where exists (select * from "items" where "items"."order_id" = "orders"."id")`, sql)

	b = testBuilder().From("orders").WhereNotExists(func(q *Builder) {
		q.From("items").Where("qty", ">", 0)
	})
	sql, bindings := b.ToSQL()
	assert.Contains(t, sql, `not exists (select * from "items" where "qty" > ?)`)
	assert.Equal(t, []any{0}, bindings)
}

func TestWhereRawBindings(t *testing.T) {
	b := testBuilder().From("users").
		WhereRaw("lower(email) = ?", "x@y.z").
		Where("active", "=", 1)

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select * from "users" where lower(email) = ? and "active" = ?`, sql)
	assert.Equal(t, []any{"x@y.z", 1}, bindings)
}

func TestExpressionValuesNeverBind(t *testing.T) {
	b := testBuilder().From("events").Where("created_at", ">", Raw("now()"))

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select * from "events" where "created_at" > now()`, sql)
	assert.Empty(t, bindings)
}

func TestCleanBindings(t *testing.T) {
	cleaned := CleanBindings([]any{1, Raw("now()"), "a", Raw("x")})
	assert.Equal(t, []any{1, "a"}, cleaned)
}

func TestJoin(t *testing.T) {
	b := testBuilder().From("users").
		Select("users.name", "posts.title").
		Join("posts", "users.id", "=", "posts.user_id")

	sql, _ := b.ToSQL()
	assert.Equal(t, `select "users"."name", "posts"."title" from "users" inner join "posts" on "users"."id" = "posts"."user_id"`, sql)
}

func TestJoinCallbackWithBoundValue(t *testing.T) {
	b := testBuilder().From("users").
		LeftJoin("posts", func(j *JoinClause) {
			j.On("users.id", "=", "posts.user_id").
				OrOn("users.id", "=", "posts.editor_id").
				Where("posts.state", "=", "published")
		}).
		Where("users.active", "=", 1)

	sql, bindings := b.ToSQL()
	assert.Equal(t,
		`select * from "users" left join "posts" on "users"."id" = "posts"."user_id" `+
			`or "users"."id" = "posts"."editor_id" and "posts"."state" = ? where "users"."active" = ?`,
		sql)
	assert.Equal(t, []any{"published", 1}, bindings)
}

func TestCrossJoin(t *testing.T) {
	sql, _ := testBuilder().From("sizes").CrossJoin("colors").ToSQL()
	assert.Equal(t, `select * from "sizes" cross join "colors"`, sql)
}

func TestGroupByHaving(t *testing.T) {
	b := testBuilder().From("orders").
		Select("customer_id").
		GroupBy("customer_id").
		Having("total", ">", 100)

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select "customer_id" from "orders" group by "customer_id" having "total" > ?`, sql)
	assert.Equal(t, []any{100}, bindings)
}

func TestHavingRaw(t *testing.T) {
	b := testBuilder().From("orders").
		GroupBy("customer_id").
		HavingRaw("sum(total) > ?", 500).
		OrHavingRaw("count(*) > ?", 10)

	sql, bindings := b.ToSQL()
	assert.Contains(t, sql, "having sum(total) > ? or count(*) > ?")
	assert.Equal(t, []any{500, 10}, bindings)
}

func TestOrderBy(t *testing.T) {
	sql, _ := testBuilder().From("users").OrderBy("name").OrderByDesc("age").ToSQL()
	assert.Equal(t, `select * from "users" order by "name" asc, "age" desc`, sql)
}

func TestOrderByUnknownDirectionOrdersAscending(t *testing.T) {
	sql, _ := testBuilder().From("users").OrderBy("name", "sideways").ToSQL()
	assert.Equal(t, `select * from "users" order by "name" asc`, sql)
}

func TestTakeIgnoresNonPositive(t *testing.T) {
	b := testBuilder().From("users")

	b.Take(0)
	assert.Nil(t, b.limit)

	b.Take(-3)
	assert.Nil(t, b.limit)

	b.Take(5)
	require.NotNil(t, b.limit)
	assert.Equal(t, 5, *b.limit)

	b.Take(0)
	assert.Equal(t, 5, *b.limit)
}

func TestForPage(t *testing.T) {
	b := testBuilder().From("users").ForPage(3, 10)

	require.NotNil(t, b.limit)
	require.NotNil(t, b.offset)
	assert.Equal(t, 10, *b.limit)
	assert.Equal(t, 20, *b.offset)

	sql, _ := b.ToSQL()
	assert.Equal(t, `select * from "users" limit 10 offset 20`, sql)
}

func TestSkipClampsAtZero(t *testing.T) {
	b := testBuilder().From("users").Skip(-4)
	require.NotNil(t, b.offset)
	assert.Equal(t, 0, *b.offset)
}

func TestUnion(t *testing.T) {
	b := testBuilder().From("users").Where("id", "=", 1).
		Union(func(q *Builder) {
			q.From("admins").Where("id", "=", 2)
		})

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select * from "users" where "id" = ? union select * from "admins" where "id" = ?`, sql)
	assert.Equal(t, []any{1, 2}, bindings)
}

func TestUnionAllWithPrebuiltQuery(t *testing.T) {
	first := testBuilder().From("users").Where("id", "=", 1)
	second := first.NewQuery().From("users").Where("id", "=", 2)

	sql, bindings := first.UnionAll(second).ToSQL()
	assert.Equal(t, `select * from "users" where "id" = ? union all select * from "users" where "id" = ?`, sql)
	assert.Equal(t, []any{1, 2}, bindings)
}

func TestDistinct(t *testing.T) {
	sql, _ := testBuilder().From("users").Select("status").Distinct().ToSQL()
	assert.Equal(t, `select distinct "status" from "users"`, sql)
}

func TestSelectRawBindingsComeFirst(t *testing.T) {
	b := testBuilder().From("users").
		SelectRaw("price * ? as price_with_tax", 1.2).
		Where("active", "=", 1)

	sql, bindings := b.ToSQL()
	assert.Equal(t, `select price * ? as price_with_tax from "users" where "active" = ?`, sql)
	assert.Equal(t, []any{1.2, 1}, bindings)
}

func TestAddSelect(t *testing.T) {
	sql, _ := testBuilder().From("users").Select("id").AddSelect("name", "email").ToSQL()
	assert.Equal(t, `select "id", "name", "email" from "users"`, sql)
}

func TestDottedAndAliasedWrapping(t *testing.T) {
	sql, _ := testBuilder().From("users").Select("users.id", "name as n", "t.*").ToSQL()
	assert.Equal(t, `select "users"."id", "name" as "n", "t".* from "users"`, sql)
}

func TestNewQueryStartsClean(t *testing.T) {
	b := testBuilder().From("users").Where("id", "=", 1)
	sub := b.NewQuery()

	assert.Empty(t, sub.wheres)
	assert.Empty(t, sub.bindings)
	assert.Equal(t, "", sub.table)
}

func TestCloneIsIndependent(t *testing.T) {
	base := testBuilder().From("users").Where("age", ">", 20)

	one := base.Clone().Where("name", "=", "Alice")
	two := base.Clone().Where("name", "=", "Bob")

	sqlOne, bindingsOne := one.ToSQL()
	sqlTwo, bindingsTwo := two.ToSQL()
	baseSQL, baseBindings := base.ToSQL()

	assert.Equal(t, `select * from "users" where "age" > ? and "name" = ?`, sqlOne)
	assert.Equal(t, []any{20, "Alice"}, bindingsOne)
	assert.Equal(t, []any{20, "Bob"}, bindingsTwo)
	assert.Equal(t, sqlOne, sqlTwo)
	assert.Equal(t, `select * from "users" where "age" > ?`, baseSQL)
	assert.Equal(t, []any{20}, baseBindings)
}

func TestPlaceholderCountMatchesBindings(t *testing.T) {
	b := testBuilder().From("users").
		SelectRaw("? as tag", "hot").
		Join("posts", func(j *JoinClause) {
			j.On("users.id", "=", "posts.user_id").Where("posts.votes", ">", 10)
		}).
		Where("active", "=", 1).
		WhereIn("role", []any{"admin", "editor"}).
		WhereBetween("age", []any{20, 30}).
		GroupBy("id").
		Having("count", ">", 2).
		OrderBy("name").
		Union(func(q *Builder) { q.From("archived_users").Where("active", "=", 0) })

	sql, bindings := b.ToSQL()
	assert.Equal(t, len(bindings), countPlaceholders(sql))
}

func countPlaceholders(sql string) int {
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
		}
	}
	return n
}
