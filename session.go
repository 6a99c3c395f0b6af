package entityassist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Entity-Assist/EntityAssist-sub001/idmap"
	"github.com/Entity-Assist/EntityAssist-sub001/stmt"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =====================================
// Session
// =====================================

// Session is the handle builders borrow. It pairs the gorm context used in
// attached mode with the raw connection used in detached mode, and carries
// the collaborators both modes need.
type Session struct {
	db        *gorm.DB
	raw       *bun.DB
	dialect   dialect.Name
	registry  *idmap.Registry
	stmts     *stmt.Builder
	validator Validator
	logger    logger.Interface
	clock     func() time.Time
	detached  bool
	translate func(error) error

	parent *Session
	inTx   bool
}

// Option configures a Session.
type Option func(*Session)

// WithRaw sets the raw connection pool for detached statements. Without it
// detached statements run on gorm's own *sql.DB.
func WithRaw(raw *bun.DB) Option {
	return func(s *Session) { s.raw = raw }
}

// WithRegistry replaces the process-wide id mapping registry.
func WithRegistry(r *idmap.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithValidator replaces the default constraint validator.
func WithValidator(v Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithLogger replaces gorm's logger for messages of this package.
func WithLogger(l logger.Interface) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the time source for versioning timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithDetached makes new builders run detached by default.
func WithDetached(detached bool) Option {
	return func(s *Session) { s.detached = detached }
}

// WithErrorTranslator installs a driver-aware error classifier.
func WithErrorTranslator(fn func(error) error) Option {
	return func(s *Session) { s.translate = fn }
}

// NewSession wraps an open gorm connection.
func NewSession(db *gorm.DB, opts ...Option) (*Session, error) {
	if db == nil {
		return nil, NewError(ErrorTypeInvalidArgument, "gorm connection is nil")
	}

	s := &Session{
		db:     db,
		logger: db.Logger,
		clock:  defaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		reg, err := idmap.Default()
		if err != nil {
			return nil, NewErrorWithCause(ErrorTypeInternal, "cannot build id mapping registry", err)
		}
		s.registry = reg
	}
	if s.stmts == nil {
		s.stmts = stmt.New(db.NamingStrategy)
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}
	if s.logger == nil {
		s.logger = logger.Default
	}

	if s.raw != nil {
		s.dialect = s.raw.Dialect().Name()
	} else {
		s.dialect = DialectName(db.Dialector.Name())
	}
	return s, nil
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// DB returns the gorm handle, bound to the current transaction if any.
func (s *Session) DB() *gorm.DB { return s.db }

// Raw returns the raw connection pool, or nil when detached statements use
// gorm's pool.
func (s *Session) Raw() *bun.DB { return s.raw }

// Dialect names the SQL dialect detached statements are written for.
func (s *Session) Dialect() dialect.Name { return s.dialect }

// Registry returns the id mapping registry.
func (s *Session) Registry() *idmap.Registry { return s.registry }

// Statements returns the literal statement builder.
func (s *Session) Statements() *stmt.Builder { return s.stmts }

// Detached reports the default run mode of new builders.
func (s *Session) Detached() bool { return s.detached }

// Now returns the session clock's current time.
func (s *Session) Now() time.Time { return s.clock() }

// InTransaction reports whether the session is bound to a transaction.
func (s *Session) InTransaction() bool { return s.inTx }

// root is the session an entity should remember: transaction-scoped copies
// must not outlive their transaction.
func (s *Session) root() *Session {
	if s.parent != nil {
		return s.parent
	}
	return s
}

// Validate runs the constraint validator.
func (s *Session) Validate(entity any) []Violation {
	return s.validator.Validate(entity)
}

// Transaction runs fn with a session bound to one transaction, committing
// when fn returns nil. Inside a transaction it runs fn directly.
func (s *Session) Transaction(ctx context.Context, fn func(tx *Session) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.withTx(tx))
	})
	return s.wrap(err)
}

func (s *Session) withTx(tx *gorm.DB) *Session {
	scoped := *s
	scoped.db = tx
	scoped.inTx = true
	scoped.parent = s.root()
	return &scoped
}

// rawConn is what detached execution needs from a connection: *sql.Conn,
// bun.Conn and a gorm transaction's pool all qualify.
type rawConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn pins one connection for the duration of a detached operation so that
// an insert and its identity read-back cannot interleave with other inserts.
func (s *Session) conn(ctx context.Context) (rawConn, func(), error) {
	if s.inTx {
		pool, ok := s.db.Statement.ConnPool.(rawConn)
		if !ok {
			return nil, nil, NewError(ErrorTypeTransaction, "transaction does not expose a raw connection")
		}
		return pool, func() {}, nil
	}

	if s.raw != nil {
		c, err := s.raw.Conn(ctx)
		if err != nil {
			return nil, nil, NewErrorWithCause(ErrorTypeConnection, "cannot acquire raw connection", err)
		}
		return c, func() { _ = c.Close() }, nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, nil, NewErrorWithCause(ErrorTypeConnection, "failed to get underlying sql.DB", err)
	}
	c, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, NewErrorWithCause(ErrorTypeConnection, "cannot acquire raw connection", err)
	}
	return c, func() { _ = c.Close() }, nil
}

// Health pings both pools.
func (s *Session) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return NewErrorWithCause(ErrorTypeConnection, "failed to get underlying sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return NewErrorWithCause(ErrorTypeConnection, "ping failed", err)
	}
	if s.raw != nil && s.raw.DB != sqlDB {
		if err := s.raw.PingContext(ctx); err != nil {
			return NewErrorWithCause(ErrorTypeConnection, "raw ping failed", err)
		}
	}
	return nil
}

// Close closes the raw pool, when it is separate, and gorm's pool.
func (s *Session) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if s.raw != nil && s.raw.DB != sqlDB {
		if err := s.raw.Close(); err != nil {
			return err
		}
	}
	return sqlDB.Close()
}

// wrap converts a collaborator error into an Error.
func (s *Session) wrap(err error) error {
	if err == nil {
		return nil
	}
	var own Error
	if errors.As(err, &own) || s.translate == nil || isLayerError(err) {
		return convertError(err)
	}
	return s.translate(err)
}

// illegalState logs and absorbs a condition that makes the operation a no-op.
func (s *Session) illegalState(ctx context.Context, msg string, args ...any) {
	s.logger.Warn(ctx, "entityassist: illegal entity state, skipping: "+msg, args...)
}
