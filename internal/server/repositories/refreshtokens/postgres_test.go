package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token_hash,\s*user_agent,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at\s*$`

	now := time.Now()
	exp := now.Add(time.Hour)
	mock.ExpectQuery(q).
		WithArgs(int64(7), "h1", "curl/8", exp).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	got, err := repo.Create(context.Background(), &models.RefreshToken{UserID: 7, TokenHash: "h1", UserAgent: "curl/8", ExpiresAt: exp})
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.RefreshToken{UserID: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestClaim_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2\s+RETURNING\s+id,\s*user_id,\s*user_agent,\s*created_at,\s*expires_at\s*$`

	now := time.Now()
	created := now.Add(-time.Hour)
	exp := now.Add(time.Hour)
	mock.ExpectQuery(q).
		WithArgs("h1", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_agent", "created_at", "expires_at"}).
			AddRow(int64(11), int64(7), "curl/8", created, exp))

	got, err := repo.Claim(context.Background(), "h1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "h1", got.TokenHash)
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, now, *got.RevokedAt)
	assert.False(t, got.Valid(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_NoRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+refresh_tokens`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Claim(context.Background(), "h1", time.Now())
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestClaim_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+refresh_tokens`).WillReturnError(errors.New("boom"))

	_, err := repo.Claim(context.Background(), "h1", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestRevoke_IdempotentOnZeroRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s*$`

	now := time.Now()
	mock.ExpectExec(q).WithArgs("h1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err := repo.Revoke(context.Background(), "h1", now)
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevoke_ChangesRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnResult(sqlmock.NewResult(0, 1))

	revoked, err := repo.Revoke(context.Background(), "h1", time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevoke_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnError(errors.New("boom"))

	_, err := repo.Revoke(context.Background(), "h1", time.Now())
	require.Error(t, err)
}

func TestRevokeAllForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2\s*$`

	now := time.Now()
	mock.ExpectExec(q).WithArgs(int64(7), now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), 7, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAllForUser_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnError(errors.New("boom"))

	_, err := repo.RevokeAllForUser(context.Background(), 7, time.Now())
	require.Error(t, err)
}

func TestRevokeByID(t *testing.T) {
	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$3\s*$`

	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "revoked", rows: 1},
		{name: "missing or foreign", rows: 0, wantErr: common.ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			now := time.Now()
			mock.ExpectExec(q).WithArgs(int64(11), int64(7), now).WillReturnResult(sqlmock.NewResult(0, tt.rows))

			err := repo.RevokeByID(context.Background(), 11, 7, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRevokeByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnError(errors.New("boom"))

	err := repo.RevokeByID(context.Background(), 11, 7, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestListActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_agent,\s*created_at,\s*expires_at\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s*$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(int64(7), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_agent", "created_at", "expires_at"}).
			AddRow(int64(12), "ua-2", now.Add(-time.Minute), now.Add(time.Hour)).
			AddRow(int64(11), "ua-1", now.Add(-time.Hour), now.Add(time.Hour)))

	got, err := repo.ListActive(context.Background(), 7, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(12), got[0].ID)
	assert.Equal(t, "ua-1", got[1].UserAgent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_agent", "created_at", "expires_at"}))

	got, err := repo.ListActive(context.Background(), 7, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListActive_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_agent", "created_at", "expires_at"}).
			AddRow("not-an-int", "ua", time.Now(), time.Now()))

	_, err := repo.ListActive(context.Background(), 7, time.Now())
	require.Error(t, err)
}

func TestListActive_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id`).WillReturnError(errors.New("boom"))

	_, err := repo.ListActive(context.Background(), 7, time.Now())
	require.Error(t, err)
}
