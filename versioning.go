package entityassist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =====================================
// Writes and SCD versioning
// =====================================

var errDryRun = errors.New("entityassist: dry run")

// Persist inserts e as a new row. Unset versioning columns are stamped: the
// window opens now and never closes, the flag becomes Active. A uuid.UUID
// identifier is generated client side when unset; any other identifier is
// read back from the database.
//
// Persisting an entity that is already persisted is logged and ignored.
func (b *Builder[E, I, P]) Persist(ctx context.Context, e P) error {
	return b.persist(ctx, e, false)
}

// PersistNow is Persist inside its own transaction, committed before
// returning.
func (b *Builder[E, I, P]) PersistNow(ctx context.Context, e P) error {
	return b.persist(ctx, e, true)
}

func (b *Builder[E, I, P]) persist(ctx context.Context, e P, commit bool) error {
	if err := b.begin(); err != nil {
		return err
	}
	if e == nil {
		return NewError(ErrorTypeInvalidArgument, "entity is nil")
	}
	if !e.IsFake() {
		b.session.illegalState(ctx, "%s %v is already persisted", typeName[E](), e.GetID())
		return nil
	}

	if commit {
		return b.session.Transaction(ctx, func(tx *Session) error {
			return b.insert(ctx, tx, e)
		})
	}
	return b.insert(ctx, b.session, e)
}

func (b *Builder[E, I, P]) insert(ctx context.Context, s *Session, e P) error {
	m := e.model()
	m.stampNew(s.Now())
	if id, ok := any(&m.ID).(*uuid.UUID); ok && *id == uuid.Nil {
		*id = uuid.New()
	}

	if err := beforePersist(ctx, e); err != nil {
		return err
	}

	var err error
	if b.detached {
		err = b.insertDetached(ctx, s, e)
	} else {
		err = s.wrap(s.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error)
	}
	if err != nil {
		return err
	}

	m.attach(s)
	return afterPersist(ctx, e)
}

// Update writes e's changed fields to its row: the fields marked dirty, or
// every mapped field when none are. Updating an entity that was never
// persisted is logged and ignored.
func (b *Builder[E, I, P]) Update(ctx context.Context, e P) error {
	return b.update(ctx, e, false)
}

// UpdateNow is Update inside its own transaction.
func (b *Builder[E, I, P]) UpdateNow(ctx context.Context, e P) error {
	return b.update(ctx, e, true)
}

func (b *Builder[E, I, P]) update(ctx context.Context, e P, commit bool) error {
	if err := b.begin(); err != nil {
		return err
	}
	if e == nil {
		return NewError(ErrorTypeInvalidArgument, "entity is nil")
	}
	if e.IsFake() {
		b.session.illegalState(ctx, "%s was never persisted, cannot update", typeName[E]())
		return nil
	}

	run := func(s *Session) error {
		e.model().WarehouseLastUpdatedTimestamp = s.Now()
		return b.write(ctx, s, e, e.DirtyFields())
	}
	if commit {
		return b.session.Transaction(ctx, run)
	}
	return run(b.session)
}

// write updates e's row. fields names the columns to set; when empty every
// mapped column is written.
func (b *Builder[E, I, P]) write(ctx context.Context, s *Session, e P, fields []string) error {
	if len(fields) > 0 {
		fields = append(fields, "WarehouseLastUpdatedTimestamp")
	}

	if err := beforeUpdate(ctx, e); err != nil {
		return err
	}

	var (
		n   int64
		err error
	)
	if b.detached {
		n, err = b.updateDetached(ctx, s, e, fields)
	} else {
		db := s.db.WithContext(ctx).Model(e).Omit(clause.Associations)
		if len(fields) > 0 {
			db = db.Select(fields)
		} else {
			db = db.Select("*")
		}
		res := db.Updates(e)
		n, err = res.RowsAffected, s.wrap(res.Error)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return NewError(ErrorTypeNotFound, "no row updated for "+typeName[E]())
	}

	e.model().attach(s)
	return afterUpdate(ctx, e)
}

// BulkUpdate sets the changed fields of template on every row matching the
// builder's filters in one statement and returns the number of rows
// affected. The changed fields are the template's dirty fields, or its
// non-zero fields when none are marked. Identifiers are never changed.
//
// With commit false the statement runs in a transaction that is rolled
// back, so only the count is observable.
func (b *Builder[E, I, P]) BulkUpdate(ctx context.Context, template P, commit bool) (int64, error) {
	if err := b.begin(); err != nil {
		return 0, err
	}
	if template == nil {
		return 0, NewError(ErrorTypeInvalidArgument, "template is nil")
	}
	if len(b.joins) > 0 || b.aggregate != nil {
		return 0, NewError(ErrorTypeUnsupported, "bulk update takes filters only")
	}

	var (
		changes map[string]any
		err     error
	)
	if dirty := template.DirtyFields(); len(dirty) > 0 {
		changes, err = b.session.stmts.Changes(template, dirty...)
	} else {
		changes, err = b.session.stmts.NonZero(template)
	}
	if err != nil {
		return 0, b.session.wrap(err)
	}
	if len(changes) == 0 {
		return 0, NewError(ErrorTypeInvalidArgument, "template has no changed fields")
	}

	var affected int64
	run := func(tx *gorm.DB) error {
		db, err := b.scope(tx.WithContext(ctx))
		if err != nil {
			return err
		}
		res := db.Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if !commit {
			return errDryRun
		}
		return nil
	}

	if commit {
		err = run(b.session.db)
	} else {
		err = b.session.db.WithContext(ctx).Transaction(run)
		if errors.Is(err, errDryRun) {
			err = nil
		}
	}
	if err != nil {
		return 0, b.session.wrap(err)
	}
	return affected, nil
}

// Delete closes e's current version as Deleted and returns its successor.
func (b *Builder[E, I, P]) Delete(ctx context.Context, e P) (P, error) {
	return b.DeleteAs(ctx, FlagDeleted, e)
}

// Archive closes e's current version as Archived and returns its successor.
func (b *Builder[E, I, P]) Archive(ctx context.Context, e P) (P, error) {
	return b.DeleteAs(ctx, FlagArchived, e)
}

// DeleteAs closes e's version and opens the next one, in one transaction.
// The closed row keeps its identifier, ends now and carries flag. The
// successor is a copy of e with a new identifier, a window opening now and
// never closing, the Active flag and empty properties; it is inserted and
// returned.
//
// Deleting an entity that was never persisted is logged and e is returned
// unchanged. When the transaction fails e is restored to its state before
// the call.
func (b *Builder[E, I, P]) DeleteAs(ctx context.Context, flag ActiveFlag, e P) (P, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewError(ErrorTypeInvalidArgument, "entity is nil")
	}
	if e.IsFake() {
		b.session.illegalState(ctx, "%s was never persisted, cannot close it", typeName[E]())
		return e, nil
	}

	saved := *e.model()
	var successor P
	err := b.session.Transaction(ctx, func(tx *Session) error {
		now := tx.Now()

		m := e.model()
		m.EffectiveToDate = now
		m.ActiveFlag = flag
		m.WarehouseLastUpdatedTimestamp = now
		if err := b.write(ctx, tx, e, []string{"EffectiveToDate", "ActiveFlag"}); err != nil {
			return err
		}

		next := fork[E, I, P](e)
		nm := next.model()
		nm.EffectiveFromDate = now
		nm.EffectiveToDate = EndOfTime
		nm.ActiveFlag = FlagActive
		nm.WarehouseCreatedTimestamp = now
		nm.WarehouseLastUpdatedTimestamp = now
		if err := b.insert(ctx, tx, next); err != nil {
			return err
		}
		successor = next
		return nil
	})
	if err != nil {
		*e.model() = saved
		return nil, err
	}
	return successor, nil
}
