// Package stmt renders literal INSERT and UPDATE statements straight from an
// entity's field values, for code paths that bypass gorm's statement
// builder and execute on a raw connection.
//
// Column discovery reads the same gorm struct tags and naming strategy gorm
// uses, so a statement built here targets the columns gorm migrated.
package stmt

import (
	"database/sql"
	"database/sql/driver"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"
)

// Descriptor is the static column table of one entity type. It is built
// once per type and shared by every statement for that type.
type Descriptor struct {
	Type  reflect.Type
	Table string
	// Fields holds the writable columns, most-derived first. A column that
	// occurs twice in the embedding chain appears once, at its first
	// occurrence. Read-only fields are left out and do not hide a writable
	// field of the same column.
	Fields []*Field
	// ID is the primary key, also when it is database generated and
	// therefore absent from Fields.
	ID *Field

	byName map[string]*Field
}

// Field describes one mapped struct field.
type Field struct {
	Name       string
	Column     string
	Index      []int
	Type       reflect.Type
	PrimaryKey bool
	Generated  bool
	DateOnly   bool
	Reference  bool
}

// Lookup finds a field by Go name or by column name.
func (d *Descriptor) Lookup(name string) (*Field, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// Columns returns the writable column names in statement order.
func (d *Descriptor) Columns() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Column
	}
	return out
}

// Builder renders statements. It is safe for concurrent use.
type Builder struct {
	namer schema.Namer
	cache *xsync.MapOf[reflect.Type, *Descriptor]
}

// New returns a Builder naming tables and columns with namer. A nil namer
// falls back to gorm's default naming strategy.
func New(namer schema.Namer) *Builder {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	return &Builder{
		namer: namer,
		cache: xsync.NewMapOf[reflect.Type, *Descriptor](),
	}
}

// Describe returns the descriptor of entity's type. entity may be a struct,
// a pointer to one, or a reflect.Type of either.
func (b *Builder) Describe(entity any) (*Descriptor, error) {
	var t reflect.Type
	if rt, ok := entity.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(entity)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &UnsupportedValueError{Type: t}
	}
	return b.describe(t), nil
}

func (b *Builder) describe(t reflect.Type) *Descriptor {
	d, _ := b.cache.LoadOrCompute(t, func() *Descriptor {
		d := &Descriptor{
			Type:   t,
			Table:  b.tableName(t),
			byName: make(map[string]*Field),
		}
		b.collect(d, t, nil, make(map[string]bool))
		return d
	})
	return d
}

func (b *Builder) tableName(t reflect.Type) string {
	if tabler, ok := reflect.New(t).Interface().(schema.Tabler); ok {
		return tabler.TableName()
	}
	return b.namer.TableName(t.Name())
}

// collect walks t's own fields first and its embedded structs afterwards,
// recursively, so the outermost declaration of a column wins.
func (b *Builder) collect(d *Descriptor, t reflect.Type, parent []int, seen map[string]bool) {
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append(make([]int, 0, len(parent)+1), parent...), i)
		tags := schema.ParseTagSetting(sf.Tag.Get("gorm"), ";")

		if isEmbedded(sf, tags) {
			sf.Index = index
			embedded = append(embedded, sf)
			continue
		}
		if !sf.IsExported() || transient(tags) {
			continue
		}

		ft := sf.Type
		if ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
			// has-many and many2many relations live in other tables
			continue
		}

		if readOnly(tags) {
			// A read-only field never claims its column; a writable field
			// of the same column further down the embedding chain keeps it.
			continue
		}

		f := &Field{
			Name:       sf.Name,
			Index:      index,
			Type:       ft,
			PrimaryKey: isPrimaryKey(sf, tags),
			DateOnly:   strings.EqualFold(tags["TYPE"], "date"),
		}
		f.Reference = isReference(ft)
		f.Generated = isGenerated(f, tags)
		f.Column = b.columnName(d.Table, sf, tags, f.Reference)

		if seen[f.Column] {
			continue
		}
		seen[f.Column] = true
		d.byName[f.Column] = f
		if _, ok := d.byName[f.Name]; !ok {
			d.byName[f.Name] = f
		}
		if f.PrimaryKey && d.ID == nil {
			d.ID = f
		}

		if f.Generated {
			continue
		}
		d.Fields = append(d.Fields, f)
	}

	for _, sf := range embedded {
		et := sf.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		b.collect(d, et, sf.Index, seen)
	}
}

func (b *Builder) columnName(table string, sf reflect.StructField, tags map[string]string, reference bool) string {
	if col := tags["COLUMN"]; col != "" {
		return col
	}
	if reference {
		if fk := tags["FOREIGNKEY"]; fk != "" {
			return b.namer.ColumnName(table, fk)
		}
		return b.namer.ColumnName(table, sf.Name+"ID")
	}
	return b.namer.ColumnName(table, sf.Name)
}

func transient(tags map[string]string) bool {
	v, ok := tags["-"]
	return ok && (v == "-" || strings.EqualFold(v, "all"))
}

func readOnly(tags map[string]string) bool {
	if v, ok := tags["->"]; ok && v != "false" {
		return true
	}
	if v, ok := tags["<-"]; ok && v == "false" {
		return true
	}
	return false
}

func isEmbedded(sf reflect.StructField, tags map[string]string) bool {
	if _, ok := tags["EMBEDDED"]; ok {
		return true
	}
	if !sf.Anonymous {
		return false
	}
	t := sf.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && !isScalar(t)
}

func isPrimaryKey(sf reflect.StructField, tags map[string]string) bool {
	if _, ok := tags["PRIMARYKEY"]; ok {
		return true
	}
	if _, ok := tags["PRIMARY_KEY"]; ok {
		return true
	}
	return sf.Name == "ID"
}

func isGenerated(f *Field, tags map[string]string) bool {
	if v, ok := tags["AUTOINCREMENT"]; ok {
		return !strings.EqualFold(v, "false")
	}
	if !f.PrimaryKey {
		return false
	}
	switch f.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	bigIntType  = reflect.TypeOf(big.Int{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// isScalar reports struct types stored in a single column.
func isScalar(t reflect.Type) bool {
	switch t {
	case timeType, bigIntType, decimalType, uuidType:
		return true
	}
	return t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType)
}

func isReference(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && !isScalar(t)
}
