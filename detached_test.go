package entityassist

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Customer struct {
	Model[int64]
	Name string
	Age  int
}

const (
	insertCustomer = "INSERT INTO customers (name, age, active_flag, effective_from_date, effective_to_date, " +
		"warehouse_created_timestamp, warehouse_last_updated_timestamp) VALUES ('O''Brien', 42, 'Active', " +
		"'2026-03-01 10:00:00.000', '2999-12-31 00:00:00.000', '2026-03-01 10:00:00.000', '2026-03-01 10:00:00.000');"
	lastInsertID = "SELECT LAST_INSERT_ID()"
)

// DetachedTestSuite drives detached writes against a mocked MySQL
// connection and checks the literal statements.
type DetachedTestSuite struct {
	suite.Suite
	db      *sql.DB
	mock    sqlmock.Sqlmock
	session *Session
	now     time.Time
	ctx     context.Context
}

func (s *DetachedTestSuite) SetupTest() {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	s.Require().NoError(err)
	s.db, s.mock = db, mock

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)

	s.now = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s.session, err = NewSession(gdb, WithDetached(true), WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *DetachedTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

func (s *DetachedTestSuite) query() *Builder[Customer, int64, *Customer] {
	return Query[Customer, int64](s.session)
}

func (s *DetachedTestSuite) TestSessionDefaults() {
	s.Equal("mysql", s.session.Dialect().String())
	s.True(s.session.Detached())
	s.True(s.query().detached, "builders inherit the session mode")
	s.Nil(s.session.Raw())
}

func (s *DetachedTestSuite) TestPersistReadsGeneratedKey() {
	s.mock.ExpectExec(insertCustomer).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery(lastInsertID).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow([]byte("42")))

	c := &Customer{Name: "O'Brien", Age: 42}
	s.Require().NoError(s.query().Persist(s.ctx, c))

	s.Equal(int64(42), c.ID)
	s.False(c.IsFake())
	s.Same(s.session, c.Session())
	s.Equal(FlagActive, c.ActiveFlag)
	s.True(c.EffectiveToDate.Equal(EndOfTime))
}

func (s *DetachedTestSuite) TestPersistNowCommits() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(insertCustomer).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery(lastInsertID).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	s.mock.ExpectCommit()

	c := &Customer{Name: "O'Brien", Age: 42}
	s.Require().NoError(s.query().PersistNow(s.ctx, c))
	s.Equal(int64(7), c.ID)
	s.Same(s.session, c.Session(), "entities remember the session, not the transaction")
}

func (s *DetachedTestSuite) TestPersistNoRowsAffected() {
	s.mock.ExpectExec(insertCustomer).WillReturnResult(sqlmock.NewResult(0, 0))

	c := &Customer{Name: "O'Brien", Age: 42}
	err := s.query().Persist(s.ctx, c)
	s.Require().Error(err)
	s.True(IsStatement(err))
	s.Contains(err.Error(), insertCustomer)
	s.True(c.IsFake())
}

func (s *DetachedTestSuite) TestPersistUncoercibleKey() {
	s.mock.ExpectExec(insertCustomer).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery(lastInsertID).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("not-a-number"))

	err := s.query().Persist(s.ctx, &Customer{Name: "O'Brien", Age: 42})
	s.True(IsStatement(err), "got %v", err)
}

func (s *DetachedTestSuite) TestPersistAlreadyPersisted() {
	c := &Customer{Name: "x"}
	c.attach(s.session)

	s.NoError(s.query().Persist(s.ctx, c), "no statement is expected")
}

func (s *DetachedTestSuite) TestUpdateDirtyFields() {
	c := &Customer{Name: "Ann", Age: 30}
	c.ID = 42
	c.attach(s.session)

	s.now = s.now.Add(time.Hour)
	c.Name = "Anne"
	c.MarkDirty("Name")

	s.mock.ExpectExec("UPDATE customers SET name='Anne', warehouse_last_updated_timestamp='2026-03-01 11:00:00.000' WHERE id=42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.Require().NoError(s.query().Update(s.ctx, c))
	s.Empty(c.DirtyFields())
	s.True(c.WarehouseLastUpdatedTimestamp.Equal(s.now))
}

func (s *DetachedTestSuite) TestUpdateMissingRow() {
	c := &Customer{Name: "Ann"}
	c.ID = 9
	c.attach(s.session)
	c.MarkDirty("age")

	s.mock.ExpectExec("UPDATE customers SET age=0, warehouse_last_updated_timestamp='2026-03-01 10:00:00.000' WHERE id=9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.query().Update(s.ctx, c)
	s.True(IsNotFound(err), "got %v", err)
}

func (s *DetachedTestSuite) TestUpdateFakeIsIgnored() {
	s.NoError(s.query().Update(s.ctx, &Customer{Name: "never saved"}))
}

func (s *DetachedTestSuite) TestDeleteClosesAndForks() {
	c := &Customer{Name: "Ann", Age: 30}
	c.ID = 5
	c.EffectiveFromDate = s.now.Add(-24 * time.Hour)
	c.EffectiveToDate = EndOfTime
	c.ActiveFlag = FlagActive
	c.WarehouseCreatedTimestamp = c.EffectiveFromDate
	c.attach(s.session)
	c.Properties()["seen"] = true

	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE customers SET active_flag='Deleted', effective_to_date='2026-03-01 10:00:00.000', " +
		"warehouse_last_updated_timestamp='2026-03-01 10:00:00.000' WHERE id=5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("INSERT INTO customers (name, age, active_flag, effective_from_date, effective_to_date, " +
		"warehouse_created_timestamp, warehouse_last_updated_timestamp) VALUES ('Ann', 30, 'Active', " +
		"'2026-03-01 10:00:00.000', '2999-12-31 00:00:00.000', '2026-03-01 10:00:00.000', '2026-03-01 10:00:00.000');").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery(lastInsertID).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(6)))
	s.mock.ExpectCommit()

	next, err := s.query().Delete(s.ctx, c)
	s.Require().NoError(err)

	s.Equal(int64(5), c.ID)
	s.Equal(FlagDeleted, c.ActiveFlag)
	s.True(c.EffectiveToDate.Equal(s.now))

	s.Equal(int64(6), next.ID)
	s.Equal("Ann", next.Name)
	s.Equal(FlagActive, next.ActiveFlag)
	s.True(next.EffectiveFromDate.Equal(s.now))
	s.True(next.EffectiveToDate.Equal(EndOfTime))
	s.Empty(next.Properties())
	s.False(next.IsFake())
}

func (s *DetachedTestSuite) TestDeleteRollsBackOnFailure() {
	c := &Customer{Name: "Ann"}
	c.ID = 5
	c.ActiveFlag = FlagActive
	c.EffectiveToDate = EndOfTime
	c.attach(s.session)
	c.MarkDirty("Name")

	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE customers SET active_flag='Archived', effective_to_date='2026-03-01 10:00:00.000', " +
		"warehouse_last_updated_timestamp='2026-03-01 10:00:00.000' WHERE id=5").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectRollback()

	next, err := s.query().Archive(s.ctx, c)
	s.Nil(next)
	s.True(IsNotFound(err), "got %v", err)

	s.Equal(FlagActive, c.ActiveFlag)
	s.True(c.EffectiveToDate.Equal(EndOfTime))
	s.True(c.WarehouseLastUpdatedTimestamp.IsZero())
	s.Equal([]string{"Name"}, c.DirtyFields())
	s.False(c.IsFake())
}

func (s *DetachedTestSuite) TestBuilderIsSingleUse() {
	b := s.query()
	s.NoError(b.Update(s.ctx, &Customer{}))
	s.Equal(ErrBuilderExecuted, b.Update(s.ctx, &Customer{}))
}

func TestDetachedTestSuite(t *testing.T) {
	suite.Run(t, new(DetachedTestSuite))
}

func TestNewSessionRequiresDB(t *testing.T) {
	_, err := NewSession(nil)
	assert.True(t, IsErrorType(err, ErrorTypeInvalidArgument))
}

func TestIdentityQuery(t *testing.T) {
	q, ok := IdentityQuery(DialectName("sqlite3"))
	require.True(t, ok)
	assert.Equal(t, "SELECT last_insert_rowid()", q)

	q, ok = IdentityQuery(DialectName("postgresql"))
	require.True(t, ok)
	assert.Equal(t, "SELECT lastval()", q)

	_, ok = IdentityQuery(DialectName("oracle"))
	assert.False(t, ok)
}
