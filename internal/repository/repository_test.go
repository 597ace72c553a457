package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newGormWithMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	return gdb, mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewUserRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "password_hash", "is_active"}).
		AddRow(7, "Ada", "Lovelace", "ada@example.com", "hash", true)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1 AND "users"."deleted_at" IS NULL`).
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, "Ada", user.FirstName)
	assert.True(t, user.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewUserRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_CreateWithAccount(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewUserRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"is_active", "id"}).AddRow(true, 11))
	mock.ExpectQuery(`INSERT INTO "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id"}).AddRow("personal", 21))
	mock.ExpectCommit()

	user := &model.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "hash", IsActive: true}
	account := &model.Account{Name: "Ada Lovelace", Kind: constants.AccountKindPersonal, IsDefault: true}

	require.NoError(t, repo.CreateWithAccount(context.Background(), user, account))
	assert.Equal(t, uint(11), user.ID)
	assert.Equal(t, uint(21), account.ID)
	assert.Equal(t, uint(11), account.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateWithAccountRollsBack(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewUserRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`INSERT INTO "accounts"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CreateWithAccount(context.Background(),
		&model.User{Email: "ada@example.com"},
		&model.Account{Name: "Ada"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateMissingRow(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewUserRepository(gdb)

	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 99, "hash")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOTPRepository_IssueSupersedes(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewOTPRepository(gdb)

	accountID := uint(5)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "otp_codes" SET "status"=\$1.* WHERE \(?purpose = \$\d+ AND status = \$\d+\)? AND account_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO "otp_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	code := &model.OTPCode{
		AccountID: &accountID,
		Purpose:   constants.OTPTwoFactorEmail,
		Channel:   constants.ChannelEmail,
		Target:    "ada@example.com",
		CodeHash:  "h",
		Status:    constants.OTPStatusPending,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, repo.Issue(context.Background(), code))
	assert.Equal(t, uint(3), code.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepository_IssueByTarget(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewOTPRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "otp_codes" SET .* target = \$\d+ AND account_id IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "otp_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectCommit()

	code := &model.OTPCode{
		Purpose:   constants.OTPPasswordReset,
		Channel:   constants.ChannelEmail,
		Target:    "ada@example.com",
		CodeHash:  "h",
		Status:    constants.OTPStatusPending,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, repo.Issue(context.Background(), code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepository_ConsumeOnlyOnce(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewOTPRepository(gdb)

	mock.ExpectExec(`UPDATE "otp_codes" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "otp_codes" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.Consume(context.Background(), 3, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Consume(context.Background(), 3, time.Now())
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepository_RecordFailedAttempt(t *testing.T) {
	gdb, mock := newGormWithMock(t)
	repo := NewOTPRepository(gdb)

	mock.ExpectExec(`UPDATE "otp_codes" SET "attempts"=attempts \+ 1,"status"=CASE WHEN attempts \+ 1 >= \$1 THEN \$2 ELSE status END`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordFailedAttempt(context.Background(), 3, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
