package query

// Join types.
const (
	joinInner = "inner"
	joinLeft  = "left"
	joinRight = "right"
	joinCross = "cross"
)

// JoinClause collects the on-predicate conjunctions of a single join. It
// is handed to the callback form of Join and compiled as part of the
// enclosing builder's join section. Conditions added with Where bind
// their value; conditions added with On compare two columns.
type JoinClause struct {
	joinType   string
	table      string
	conditions []joinCondition
	bindings   []any
}

type joinCondition struct {
	first    string
	operator string
	second   string
	boolean  string
	where    bool
	value    any
}

// NewJoinClause creates a join clause of the given type against table.
func NewJoinClause(joinType, table string) *JoinClause {
	return &JoinClause{joinType: joinType, table: table}
}

// On adds an and-conjoined column comparison to the join.
func (j *JoinClause) On(first, operator, second string) *JoinClause {
	return j.on(first, operator, second, "and")
}

// OrOn adds an or-conjoined column comparison to the join.
func (j *JoinClause) OrOn(first, operator, second string) *JoinClause {
	return j.on(first, operator, second, "or")
}

func (j *JoinClause) on(first, operator, second, boolean string) *JoinClause {
	j.conditions = append(j.conditions, joinCondition{
		first:    first,
		operator: operator,
		second:   second,
		boolean:  boolean,
	})
	return j
}

// Where adds an and-conjoined condition whose second operand is a value
// to bind rather than a column reference.
func (j *JoinClause) Where(first, operator string, value any) *JoinClause {
	return j.whereValue(first, operator, value, "and")
}

// OrWhere adds an or-conjoined value condition.
func (j *JoinClause) OrWhere(first, operator string, value any) *JoinClause {
	return j.whereValue(first, operator, value, "or")
}

func (j *JoinClause) whereValue(first, operator string, value any, boolean string) *JoinClause {
	j.conditions = append(j.conditions, joinCondition{
		first:    first,
		operator: operator,
		boolean:  boolean,
		where:    true,
		value:    value,
	})
	if _, ok := value.(Expression); !ok {
		j.bindings = append(j.bindings, value)
	}
	return j
}
