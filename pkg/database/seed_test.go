package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newGormWithMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Discard,
	})
	require.NoError(t, err)
	return gdb, mock
}

var testAdmin = DefaultAdmin{FirstName: "Ops", LastName: "Admin", Email: "admin@example.com", Password: "Admin@12345"}

func TestSeed_Idempotent(t *testing.T) {
	gdb, mock := newGormWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "roles" WHERE name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "super_admin"))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, testAdmin.Email))
	mock.ExpectCommit()

	require.NoError(t, Seed(context.Background(), gdb, testAdmin, bcrypt.MinCost))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_CreatesRoleWhenMissing(t *testing.T) {
	gdb, mock := newGormWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "roles" WHERE name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, testAdmin.Email))
	mock.ExpectCommit()

	require.NoError(t, Seed(context.Background(), gdb, testAdmin, bcrypt.MinCost))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIndexes(t *testing.T) {
	gdb, mock := newGormWithMock(t)

	for range indexStatements {
		mock.ExpectExec(`CREATE (UNIQUE )?INDEX IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, CreateIndexes(context.Background(), gdb))
	assert.NoError(t, mock.ExpectationsWereMet())
}
