package stmt

import (
	"reflect"
	"strings"
)

// BuildInsert renders
//
//	INSERT INTO <table> (<col>, ...) VALUES (<lit>, ...);
//
// from the entity's current field values. Null values, database generated
// identifiers and UnsetForeignKey sentinels are left out.
func (b *Builder) BuildInsert(entity any) (string, error) {
	v, d, err := b.open(entity)
	if err != nil {
		return "", err
	}

	cols := make([]string, 0, len(d.Fields))
	vals := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		if f.PrimaryKey && fv.IsZero() {
			continue
		}
		lit, ok, err := b.literal(f, fv)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		cols = append(cols, f.Column)
		vals = append(vals, lit)
	}
	if len(cols) == 0 {
		return "", ErrNoColumns
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(vals, ", "))
	sb.WriteString(");")
	return sb.String(), nil
}

// BuildUpdate renders
//
//	UPDATE <table> SET <col>=<lit>, ... WHERE <idCol>=<idLit>
//
// for the fields named in changed, keyed by Go field name or column name.
// Assignments follow the descriptor order, not map order. A nil value sets
// the column to NULL.
func (b *Builder) BuildUpdate(entity any, changed map[string]any) (string, error) {
	if len(changed) == 0 {
		return "", ErrNoChanges
	}
	v, d, err := b.open(entity)
	if err != nil {
		return "", err
	}
	if d.ID == nil {
		return "", ErrNoIdentifier
	}
	idv, err := v.FieldByIndexErr(d.ID.Index)
	if err != nil || idv.IsZero() {
		return "", ErrNoIdentifier
	}
	idLit, ok, err := b.literal(d.ID, idv)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoIdentifier
	}

	values := make(map[*Field]any, len(changed))
	for name, val := range changed {
		f, ok := d.Lookup(name)
		if !ok || f == d.ID || !writable(d, f) {
			return "", &UnknownFieldError{Table: d.Table, Name: name}
		}
		values[f] = val
	}

	sets := make([]string, 0, len(values))
	for _, f := range d.Fields {
		val, ok := values[f]
		if !ok {
			continue
		}
		if val == nil {
			sets = append(sets, f.Column+"=NULL")
			continue
		}
		lit, ok, err := b.literal(f, reflect.ValueOf(val))
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		sets = append(sets, f.Column+"="+lit)
	}
	if len(sets) == 0 {
		return "", ErrNoChanges
	}

	return "UPDATE " + d.Table + " SET " + strings.Join(sets, ", ") +
		" WHERE " + d.ID.Column + "=" + idLit, nil
}

// Changes reads the named fields off entity and returns them keyed by
// column, ready for BuildUpdate or a gorm map update. With no names every
// writable non-key field is returned. Nested entities are replaced by their
// identifiers.
func (b *Builder) Changes(entity any, fields ...string) (map[string]any, error) {
	v, d, err := b.open(entity)
	if err != nil {
		return nil, err
	}

	selected := d.Fields
	if len(fields) > 0 {
		selected = make([]*Field, 0, len(fields))
		for _, name := range fields {
			f, ok := d.Lookup(name)
			if !ok || !writable(d, f) {
				return nil, &UnknownFieldError{Table: d.Table, Name: name}
			}
			selected = append(selected, f)
		}
	}

	out := make(map[string]any, len(selected))
	for _, f := range selected {
		if f.PrimaryKey {
			continue
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		out[f.Column] = b.plain(f, fv)
	}
	return out, nil
}

// NonZero is Changes restricted to fields holding a non-zero value.
func (b *Builder) NonZero(entity any) (map[string]any, error) {
	v, d, err := b.open(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, f := range d.Fields {
		if f.PrimaryKey {
			continue
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil || fv.IsZero() {
			continue
		}
		out[f.Column] = b.plain(f, fv)
	}
	return out, nil
}

// IDValue returns the entity's primary key value, or nil when it has none.
func (b *Builder) IDValue(entity any) any {
	v, d, err := b.open(entity)
	if err != nil || d.ID == nil {
		return nil
	}
	fv, err := v.FieldByIndexErr(d.ID.Index)
	if err != nil {
		return nil
	}
	return fv.Interface()
}

func (b *Builder) plain(f *Field, v reflect.Value) any {
	if !f.Reference {
		return v.Interface()
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	ref := b.describe(v.Type())
	if ref.ID == nil {
		return nil
	}
	id, err := v.FieldByIndexErr(ref.ID.Index)
	if err != nil || id.IsZero() {
		return nil
	}
	return id.Interface()
}

func (b *Builder) open(entity any) (reflect.Value, *Descriptor, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, nil, &UnsupportedValueError{Type: v.Type()}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, nil, &UnsupportedValueError{Type: reflect.TypeOf(entity)}
	}
	return v, b.describe(v.Type()), nil
}

func writable(d *Descriptor, f *Field) bool {
	for _, w := range d.Fields {
		if w == f {
			return true
		}
	}
	return false
}
