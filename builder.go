package entityassist

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// =====================================
// Query Builder
// =====================================

// Builder accumulates filters, joins, an optional aggregate and paging for
// one entity type, then runs exactly one terminal operation. It is not safe
// for concurrent use.
//
// E is the entity struct, I its identifier type and P is *E:
//
//	people, err := entityassist.Query[Person, int64](s).
//		Where("name", entityassist.OpLike, "A%").
//		InActiveRange().
//		GetAll(ctx)
type Builder[E any, I comparable, P EntityPtr[E, I]] struct {
	session    *Session
	conditions []Condition
	joins      []joinClause
	aggregate  *aggregateClause
	groups     []string
	orders     []Order
	first      int
	max        int
	detached   bool
	executed   bool
	err        error
}

type joinClause struct {
	relation   string
	conditions []Condition
	kind       JoinType
}

type aggregateClause struct {
	kind   AggregateKind
	column string
}

// Query returns a builder bound to s, or to the default session when s is
// nil.
func Query[E any, I comparable, P EntityPtr[E, I]](s *Session) *Builder[E, I, P] {
	b := &Builder[E, I, P]{session: s}
	if b.session == nil {
		b.session, b.err = DefaultSession()
	}
	if b.session != nil {
		b.detached = b.session.detached
	}
	return b
}

// BuilderFor returns a builder bound to the session e was loaded through,
// persisted through or bound to.
func BuilderFor[E any, I comparable, P EntityPtr[E, I]](e P) *Builder[E, I, P] {
	var s *Session
	if e != nil {
		s = e.Session()
	}
	return Query[E, I, P](s)
}

// Session returns the session the builder runs against.
func (b *Builder[E, I, P]) Session() *Session { return b.session }

// Where appends a predicate on column. Predicates are ANDed in call order
// and an identical predicate is only kept once.
func (b *Builder[E, I, P]) Where(column string, op Operator, value any) *Builder[E, I, P] {
	return b.WhereCondition(WhereCondition(column, op, value))
}

// WhereCondition appends an arbitrary condition, such as an Or group.
func (b *Builder[E, I, P]) WhereCondition(cond Condition) *Builder[E, I, P] {
	for _, existing := range b.conditions {
		if reflect.DeepEqual(existing, cond) {
			return b
		}
	}
	b.conditions = append(b.conditions, cond)
	return b
}

// Or appends one condition that holds when any of conds holds.
func (b *Builder[E, I, P]) Or(conds ...Condition) *Builder[E, I, P] {
	return b.WhereCondition(Or(conds...))
}

// Conditions returns the accumulated predicates. It lets a builder act as
// the filter source of another builder's Join.
func (b *Builder[E, I, P]) Conditions() []Condition {
	out := make([]Condition, len(b.conditions))
	copy(out, b.conditions)
	return out
}

// Join joins the named relation (a has-one or belongs-to field of E). The
// conditions of sub, if any, are applied to the joined relation. The join is
// inner unless joinType says otherwise.
func (b *Builder[E, I, P]) Join(relation string, sub ConditionSource, joinType ...JoinType) *Builder[E, I, P] {
	j := joinClause{relation: relation, kind: JoinInner}
	if len(joinType) > 0 {
		j.kind = joinType[0]
	}
	if sub != nil {
		j.conditions = sub.Conditions()
	}
	b.joins = append(b.joins, j)
	return b
}

func (b *Builder[E, I, P]) selectAggregate(kind AggregateKind, column string) *Builder[E, I, P] {
	if b.aggregate != nil && b.err == nil {
		b.err = NewError(ErrorTypeInvalidArgument,
			fmt.Sprintf("aggregate %s already selected, cannot add %s", b.aggregate.kind, kind))
		return b
	}
	b.aggregate = &aggregateClause{kind: kind, column: column}
	return b
}

// SelectCount counts rows, or non-null values of column when it is not
// empty.
func (b *Builder[E, I, P]) SelectCount(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateCount, column)
}

// SelectColumn projects a single column.
func (b *Builder[E, I, P]) SelectColumn(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateColumn, column)
}

// SelectMax selects the largest value of column.
func (b *Builder[E, I, P]) SelectMax(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateMax, column)
}

// SelectMin selects the smallest value of column.
func (b *Builder[E, I, P]) SelectMin(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateMin, column)
}

// SelectSum sums column, keeping the driver's result type.
func (b *Builder[E, I, P]) SelectSum(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateSum, column)
}

// SelectSumAsLong sums column and yields int64.
func (b *Builder[E, I, P]) SelectSumAsLong(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateSumAsLong, column)
}

// SelectSumAsDouble sums column and yields float64.
func (b *Builder[E, I, P]) SelectSumAsDouble(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateSumAsDouble, column)
}

// SelectAverage averages column and yields float64.
func (b *Builder[E, I, P]) SelectAverage(column string) *Builder[E, I, P] {
	return b.selectAggregate(AggregateAverage, column)
}

// GroupBy groups the aggregate by column; Scalars then yields one value
// per group.
func (b *Builder[E, I, P]) GroupBy(column string) *Builder[E, I, P] {
	b.groups = append(b.groups, column)
	return b
}

// OrderBy sorts by column. Calls add sort keys in order.
func (b *Builder[E, I, P]) OrderBy(column string, direction OrderDirection) *Builder[E, I, P] {
	b.orders = append(b.orders, Order{Field: column, Direction: direction})
	return b
}

// SetFirstResults skips the first n rows.
func (b *Builder[E, I, P]) SetFirstResults(n int) *Builder[E, I, P] {
	b.first = n
	return b
}

// SetMaxResults caps the number of rows; zero means no cap.
func (b *Builder[E, I, P]) SetMaxResults(n int) *Builder[E, I, P] {
	b.max = n
	return b
}

// Detached makes writes go through literal statements on the raw
// connection instead of gorm.
func (b *Builder[E, I, P]) Detached(detached bool) *Builder[E, I, P] {
	b.detached = detached
	return b
}

// InActiveRange keeps rows whose flag is Active or above.
func (b *Builder[E, I, P]) InActiveRange() *Builder[E, I, P] {
	return b.Where(b.column("ActiveFlag"), OpIn, ActiveAndUp.Values())
}

// InVisibleRange keeps rows whose flag is Archived or above.
func (b *Builder[E, I, P]) InVisibleRange() *Builder[E, I, P] {
	return b.Where(b.column("ActiveFlag"), OpIn, VisibleAndUp.Values())
}

// InDateRange keeps versions valid now.
func (b *Builder[E, I, P]) InDateRange() *Builder[E, I, P] {
	return b.InDateRangeAt(b.now())
}

// InDateRangeAt keeps versions valid at the given instant.
func (b *Builder[E, I, P]) InDateRangeAt(at time.Time) *Builder[E, I, P] {
	return b.InDateRangeBetween(at, at)
}

// InDateRangeBetween keeps versions whose window overlaps [from, to].
func (b *Builder[E, I, P]) InDateRangeBetween(from, to time.Time) *Builder[E, I, P] {
	fromCol := b.column("EffectiveFromDate")
	toCol := b.column("EffectiveToDate")
	b.Where(fromCol, OpLessThanOrEqual, to.UTC())
	return b.Or(
		WhereCondition(toCol, OpGreaterThanOrEqual, from.UTC()),
		WhereCondition(toCol, OpEqual, EndOfTime),
	)
}

func (b *Builder[E, I, P]) now() time.Time {
	if b.session != nil {
		return b.session.Now()
	}
	return defaultClock()
}

func (b *Builder[E, I, P]) namer() schema.Namer {
	if b.session != nil && b.session.db.NamingStrategy != nil {
		return b.session.db.NamingStrategy
	}
	return schema.NamingStrategy{}
}

// column maps a Model field name to its column.
func (b *Builder[E, I, P]) column(field string) string {
	return b.namer().ColumnName("", field)
}

// begin moves the builder to its executed state.
func (b *Builder[E, I, P]) begin() error {
	if b.executed {
		return ErrBuilderExecuted
	}
	b.executed = true
	if b.err != nil {
		return b.err
	}
	if b.session == nil {
		return ErrNoSession
	}
	return nil
}

// scope applies joins, filters, grouping, ordering and paging to db.
func (b *Builder[E, I, P]) scope(db *gorm.DB) (*gorm.DB, error) {
	db = db.Model(new(E))

	if len(b.joins) > 0 {
		rels, err := b.relations()
		if err != nil {
			return nil, err
		}
		for _, j := range b.joins {
			if _, ok := rels[strings.SplitN(j.relation, ".", 2)[0]]; !ok {
				return nil, NewError(ErrorTypeInvalidArgument,
					fmt.Sprintf("%s has no relation %q", typeName[E](), j.relation))
			}
			db, err = b.applyJoin(db, j)
			if err != nil {
				return nil, err
			}
		}
	}

	for _, c := range b.conditions {
		expr, err := expression(c, clause.CurrentTable, b.session.Dialect())
		if err != nil {
			return nil, err
		}
		db = db.Where(expr)
	}
	for _, g := range b.groups {
		db = db.Group(g)
	}
	for _, o := range b.orders {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: o.Field},
			Desc:   o.Direction == OrderDesc,
		})
	}
	if b.first > 0 {
		db = db.Offset(b.first)
	}
	if b.max > 0 {
		db = db.Limit(b.max)
	}
	return db, nil
}

func (b *Builder[E, I, P]) relations() (map[string]*schema.Relationship, error) {
	st := &gorm.Statement{DB: b.session.db}
	if err := st.Parse(new(E)); err != nil {
		return nil, b.session.wrap(err)
	}
	return st.Schema.Relationships.Relations, nil
}

func (b *Builder[E, I, P]) applyJoin(db *gorm.DB, j joinClause) (*gorm.DB, error) {
	var args []any
	if len(j.conditions) > 0 {
		on := b.session.db.Session(&gorm.Session{NewDB: true})
		for _, c := range j.conditions {
			// CurrentTable resolves to the relation alias inside ON.
			expr, err := expression(c, clause.CurrentTable, b.session.Dialect())
			if err != nil {
				return nil, err
			}
			on = on.Where(expr)
		}
		args = append(args, on)
	}

	switch j.kind {
	case JoinInner, "":
		return db.InnerJoins(j.relation, args...), nil
	case JoinLeft:
		return db.Joins(j.relation, args...), nil
	default:
		return nil, NewError(ErrorTypeUnsupported, fmt.Sprintf("%s join is not supported", j.kind))
	}
}

// =====================================
// Reads
// =====================================

// Get returns the first matching entity, or an ErrorTypeNotFound error.
func (b *Builder[E, I, P]) Get(ctx context.Context) (P, error) {
	if b.max == 0 || b.max > 1 {
		b.max = 1
	}
	all, err := b.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, NewError(ErrorTypeNotFound, typeName[E]()+" not found")
	}
	return all[0], nil
}

// GetAll returns every matching entity, hydrated and bound to the session.
func (b *Builder[E, I, P]) GetAll(ctx context.Context) ([]P, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	if b.aggregate != nil {
		return nil, NewError(ErrorTypeInvalidArgument, "builder selects an aggregate; use Scalar or Scalars")
	}

	db, err := b.scope(b.session.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var rows []E
	if err := db.Find(&rows).Error; err != nil {
		return nil, b.session.wrap(err)
	}

	out := make([]P, len(rows))
	for i := range rows {
		p := P(&rows[i])
		p.model().attach(b.session)
		b.attachJoined(reflect.ValueOf(p).Elem())
		out[i] = p
	}
	return out, nil
}

// hydrated is implemented by every entity through its embedded Model.
type hydrated interface {
	attach(s *Session)
	hasID() bool
}

// attachJoined binds the entities loaded through joins to the session, the
// same way as the root row.
func (b *Builder[E, I, P]) attachJoined(v reflect.Value) {
	for _, j := range b.joins {
		cur := v
		for _, name := range strings.Split(j.relation, ".") {
			f := cur.FieldByName(name)
			if f.Kind() == reflect.Ptr {
				if f.IsNil() {
					break
				}
				f = f.Elem()
			}
			if f.Kind() != reflect.Struct || !f.CanAddr() {
				break
			}
			if h, ok := f.Addr().Interface().(hydrated); ok && h.hasID() {
				h.attach(b.session)
			}
			cur = f
		}
	}
}

// Count returns the number of matching rows.
func (b *Builder[E, I, P]) Count(ctx context.Context) (int64, error) {
	if err := b.begin(); err != nil {
		return 0, err
	}
	db, err := b.scope(b.session.db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, b.session.wrap(err)
	}
	return n, nil
}

// Scalar runs the selected aggregate and returns its first value, or nil
// when there is none.
func (b *Builder[E, I, P]) Scalar(ctx context.Context) (any, error) {
	values, err := b.Scalars(ctx)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// Scalars runs the selected aggregate and returns one value per row, one
// per group when GroupBy was used. Count and SumAsLong values are int64;
// SumAsDouble and Average values are float64.
func (b *Builder[E, I, P]) Scalars(ctx context.Context) ([]any, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	if b.aggregate == nil {
		return nil, NewError(ErrorTypeInvalidArgument, "no aggregate selected")
	}

	db, err := b.scope(b.session.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	rows, err := b.aggregate.apply(db).Rows()
	if err != nil {
		return nil, b.session.wrap(err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, b.session.wrap(err)
		}
		if v, err = b.coerce(v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, b.session.wrap(err)
	}
	return out, nil
}

func (a *aggregateClause) apply(db *gorm.DB) *gorm.DB {
	col := clause.Column{Table: clause.CurrentTable, Name: a.column}
	switch a.kind {
	case AggregateCount:
		if a.column == "" || a.column == "*" {
			return db.Select("COUNT(*)")
		}
		return db.Select("COUNT(?)", col)
	case AggregateColumn:
		return db.Select("?", col)
	case AggregateSumAsLong, AggregateSumAsDouble:
		return db.Select("SUM(?)", col)
	case AggregateAverage:
		return db.Select("AVG(?)", col)
	default:
		return db.Select(string(a.kind)+"(?)", col)
	}
}

func (b *Builder[E, I, P]) coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var target reflect.Type
	switch b.aggregate.kind {
	case AggregateCount, AggregateSumAsLong:
		target = reflect.TypeOf(int64(0))
	case AggregateSumAsDouble, AggregateAverage:
		target = reflect.TypeOf(float64(0))
	default:
		if raw, ok := v.([]byte); ok {
			return string(raw), nil
		}
		return v, nil
	}
	out, err := b.session.registry.Convert(v, target)
	if err != nil {
		return nil, b.session.wrap(err)
	}
	return out, nil
}

// ScalarAs runs b's aggregate and coerces the first value to T through the
// session's id mapping registry. A NULL aggregate yields the zero T.
func ScalarAs[T any, E any, I comparable, P EntityPtr[E, I]](ctx context.Context, b *Builder[E, I, P]) (T, error) {
	var zero T
	v, err := b.Scalar(ctx)
	if err != nil || v == nil {
		return zero, err
	}
	out, err := b.session.registry.Convert(v, reflect.TypeOf(zero))
	if err != nil {
		return zero, b.session.wrap(err)
	}
	return out.(T), nil
}

// ValidateEntity checks e against its constraints and renders each
// violation as "<TypeName>.<path> <message>". It does not consume the
// builder.
func (b *Builder[E, I, P]) ValidateEntity(e P) []string {
	v := Validator(NewValidator())
	if b.session != nil {
		v = b.session.validator
	}
	return formatViolations(typeName[E](), v.Validate(e))
}

func typeName[E any]() string {
	return reflect.TypeOf((*E)(nil)).Elem().Name()
}
