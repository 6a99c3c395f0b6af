package entityassist

import (
	"context"

	"github.com/Entity-Assist/EntityAssist-sub001/idmap"
)

// =====================================
// Detached execution
// =====================================

// insertDetached runs a literal INSERT and reads the generated key back on
// the same connection.
func (b *Builder[E, I, P]) insertDetached(ctx context.Context, s *Session, e P) error {
	query, err := s.stmts.BuildInsert(e)
	if err != nil {
		return s.wrap(err)
	}
	desc, err := s.stmts.Describe(e)
	if err != nil {
		return s.wrap(err)
	}

	conn, release, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	res, err := conn.ExecContext(ctx, query)
	if err != nil {
		return s.wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewErrorWithCause(ErrorTypeStatement, "cannot read affected rows", err)
	}
	if n == 0 {
		return NewError(ErrorTypeStatement, "insert affected no rows: "+query)
	}

	if desc.ID == nil || !desc.ID.Generated {
		return nil
	}

	identity, ok := IdentityQuery(s.dialect)
	if !ok {
		return NewError(ErrorTypeUnsupported, "no identity query for dialect "+s.dialect.String())
	}
	var key any
	if err := conn.QueryRowContext(ctx, identity).Scan(&key); err != nil {
		return NewErrorWithCause(ErrorTypeStatement, "cannot read generated key", err)
	}
	if key == nil {
		return NewError(ErrorTypeStatement, "insert returned no generated key")
	}

	id, err := idmap.As[I](s.registry, key)
	if err != nil {
		return s.wrap(err)
	}
	e.SetID(id)
	return nil
}

// updateDetached runs a literal UPDATE of fields, or of every mapped column
// when fields is empty, and returns the affected row count.
func (b *Builder[E, I, P]) updateDetached(ctx context.Context, s *Session, e P, fields []string) (int64, error) {
	changes, err := s.stmts.Changes(e, fields...)
	if err != nil {
		return 0, s.wrap(err)
	}
	query, err := s.stmts.BuildUpdate(e, changes)
	if err != nil {
		return 0, s.wrap(err)
	}

	conn, release, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	res, err := conn.ExecContext(ctx, query)
	if err != nil {
		return 0, s.wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewErrorWithCause(ErrorTypeStatement, "cannot read affected rows", err)
	}
	return n, nil
}
