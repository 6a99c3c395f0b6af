package entityassist

import (
	"time"
)

// =====================================
// Entity Contract
// =====================================

// EndOfTime is the EffectiveToDate of a version that has not been closed.
var EndOfTime = time.Date(2999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Entity is what the builder needs from a record. Implement it by embedding
// Model; the unexported method keeps other implementations out.
type Entity[I comparable] interface {
	GetID() I
	SetID(id I)
	// IsFake reports an in-memory instance that was never persisted or
	// loaded from storage.
	IsFake() bool

	GetActiveFlag() ActiveFlag
	SetActiveFlag(flag ActiveFlag)
	GetEffectiveFromDate() time.Time
	SetEffectiveFromDate(t time.Time)
	GetEffectiveToDate() time.Time
	SetEffectiveToDate(t time.Time)
	GetWarehouseCreatedTimestamp() time.Time
	SetWarehouseCreatedTimestamp(t time.Time)
	GetWarehouseLastUpdatedTimestamp() time.Time
	SetWarehouseLastUpdatedTimestamp(t time.Time)

	// Properties is transient scratch space. It is never persisted.
	Properties() map[string]any

	// Session is the session the entity was loaded through, persisted
	// through or bound to.
	Session() *Session
	Bind(s *Session)

	MarkDirty(fields ...string)
	DirtyFields() []string
	ClearDirty()

	model() *Model[I]
}

// EntityPtr constrains P to be *E and to implement Entity[I].
type EntityPtr[E any, I comparable] interface {
	*E
	Entity[I]
}

// Model carries identity, lifecycle and versioning columns. Embed it in
// every entity:
//
//	type Customer struct {
//		entityassist.Model[int64]
//		Name string
//	}
type Model[I comparable] struct {
	ID                            I          `gorm:"primaryKey"`
	ActiveFlag                    ActiveFlag `gorm:"type:varchar(16);not null;index"`
	EffectiveFromDate             time.Time  `gorm:"not null"`
	EffectiveToDate               time.Time  `gorm:"not null;index"`
	WarehouseCreatedTimestamp     time.Time  `gorm:"not null"`
	WarehouseLastUpdatedTimestamp time.Time  `gorm:"not null"`

	persisted  bool
	session    *Session
	properties map[string]any
	dirty      []string
}

// GetID returns the identifier, the zero value until the row exists.
func (m *Model[I]) GetID() I {
	return m.ID
}

// SetID sets the identifier.
func (m *Model[I]) SetID(id I) {
	m.ID = id
}

// IsFake reports whether the entity exists only in memory, i.e. it was
// neither persisted nor loaded.
func (m *Model[I]) IsFake() bool {
	return !m.persisted
}

func (m *Model[I]) model() *Model[I] {
	return m
}

func (m *Model[I]) hasID() bool {
	var zero I
	return m.ID != zero
}

// GetActiveFlag returns the lifecycle flag.
func (m *Model[I]) GetActiveFlag() ActiveFlag {
	return m.ActiveFlag
}

// SetActiveFlag sets the lifecycle flag.
func (m *Model[I]) SetActiveFlag(flag ActiveFlag) {
	m.ActiveFlag = flag
}

// GetEffectiveFromDate returns the start of the version's window.
func (m *Model[I]) GetEffectiveFromDate() time.Time {
	return m.EffectiveFromDate
}

// SetEffectiveFromDate sets the start of the version's window.
func (m *Model[I]) SetEffectiveFromDate(t time.Time) {
	m.EffectiveFromDate = t
}

// GetEffectiveToDate returns the end of the version's window, EndOfTime
// while it is open.
func (m *Model[I]) GetEffectiveToDate() time.Time {
	return m.EffectiveToDate
}

// SetEffectiveToDate sets the end of the version's window.
func (m *Model[I]) SetEffectiveToDate(t time.Time) {
	m.EffectiveToDate = t
}

// GetWarehouseCreatedTimestamp returns when the row was inserted.
func (m *Model[I]) GetWarehouseCreatedTimestamp() time.Time {
	return m.WarehouseCreatedTimestamp
}

// SetWarehouseCreatedTimestamp sets when the row was inserted.
func (m *Model[I]) SetWarehouseCreatedTimestamp(t time.Time) {
	m.WarehouseCreatedTimestamp = t
}

// GetWarehouseLastUpdatedTimestamp returns when the row was last written.
func (m *Model[I]) GetWarehouseLastUpdatedTimestamp() time.Time {
	return m.WarehouseLastUpdatedTimestamp
}

// SetWarehouseLastUpdatedTimestamp sets when the row was last written.
func (m *Model[I]) SetWarehouseLastUpdatedTimestamp(t time.Time) {
	m.WarehouseLastUpdatedTimestamp = t
}

// Properties returns the scratch map, creating it on first use.
func (m *Model[I]) Properties() map[string]any {
	if m.properties == nil {
		m.properties = make(map[string]any)
	}
	return m.properties
}

// Session returns the session the entity was loaded, persisted or bound
// through, or nil.
func (m *Model[I]) Session() *Session {
	return m.session
}

// Bind sets the session BuilderFor uses for this entity.
func (m *Model[I]) Bind(s *Session) {
	m.session = s
}

// MarkDirty records fields, by Go name or column, as changed since the
// entity was loaded. Detached updates write only dirty fields.
func (m *Model[I]) MarkDirty(fields ...string) {
	for _, f := range fields {
		if !m.isDirty(f) {
			m.dirty = append(m.dirty, f)
		}
	}
}

func (m *Model[I]) isDirty(field string) bool {
	for _, d := range m.dirty {
		if d == field {
			return true
		}
	}
	return false
}

// DirtyFields returns the fields marked since the last write.
func (m *Model[I]) DirtyFields() []string {
	out := make([]string, len(m.dirty))
	copy(out, m.dirty)
	return out
}

// ClearDirty forgets the fields marked dirty.
func (m *Model[I]) ClearDirty() {
	m.dirty = nil
}

// attach marks the model as backed by a row read or written through s.
func (m *Model[I]) attach(s *Session) {
	m.persisted = true
	m.dirty = nil
	if s != nil {
		m.session = s.root()
	}
}

// stampNew fills the versioning columns a fresh version needs. Values the
// caller already set are kept.
func (m *Model[I]) stampNew(now time.Time) {
	if m.EffectiveFromDate.IsZero() {
		m.EffectiveFromDate = now
	}
	if m.EffectiveToDate.IsZero() {
		m.EffectiveToDate = EndOfTime
	}
	if m.ActiveFlag == FlagUnknown {
		m.ActiveFlag = FlagActive
	}
	if m.WarehouseCreatedTimestamp.IsZero() {
		m.WarehouseCreatedTimestamp = now
	}
	m.WarehouseLastUpdatedTimestamp = now
}

// fork copies e into a new, unsaved instance with a cleared identifier and
// an empty property bag.
func fork[E any, I comparable, P EntityPtr[E, I]](e P) P {
	c := new(E)
	*c = *e
	succ := P(c)

	m := succ.model()
	var zero I
	m.ID = zero
	m.persisted = false
	m.properties = nil
	m.dirty = nil
	return succ
}

// IsCurrent reports whether e is the open, active version of its record.
func IsCurrent[I comparable](e Entity[I]) bool {
	return e.GetEffectiveToDate().Equal(EndOfTime) && ActiveAndUp.Contains(e.GetActiveFlag())
}
