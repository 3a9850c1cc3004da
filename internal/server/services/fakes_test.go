package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- hasher ---

// plainHasher stores "plain:" + password and counts Verify calls.
type plainHasher struct {
	mu       sync.Mutex
	verifies int
	hashErr  error
}

func (h *plainHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "plain:" + password, nil
}

func (h *plainHasher) Verify(password, encoded string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return encoded == "plain:"+password
}

func (h *plainHasher) Verifies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

// --- users repo ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.User

	createErr error
	getErr    error
	countErr  error
	lockErr   error
	updateErr error
	deleteErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{rows: map[int64]models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, row := range f.rows {
		if row.UserName == u.UserName {
			return nil, errors.Join(common.ErrorConflict, errors.New("users_username_key"))
		}
		if row.Email == u.Email {
			return nil, errors.Join(common.ErrorConflict, errors.New("users_email_key"))
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.rows[u.ID] = *u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &row, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, row := range f.rows {
		if row.Email == email {
			return &row, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.rows)), nil
}

func (f *fakeUsersRepo) LockTable(ctx context.Context) error { return f.lockErr }

func (f *fakeUsersRepo) UpdateLoginState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error {
	return f.update(id, func(u *models.User) error {
		u.FailedLoginAttempts = failed
		u.LockedUntil = lockedUntil
		return nil
	})
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return f.update(id, func(u *models.User) error {
		u.PasswordHash = hash
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		return nil
	})
}

func (f *fakeUsersRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	return f.update(id, func(u *models.User) error {
		for otherID, row := range f.rows {
			if otherID != id && row.Email == email {
				return errors.Join(common.ErrorConflict, errors.New("users_email_key"))
			}
		}
		u.Email = email
		return nil
	})
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUsersRepo) update(id int64, fn func(u *models.User) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	row, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	if err := fn(&row); err != nil {
		return err
	}
	f.rows[id] = row
	return nil
}

func (f *fakeUsersRepo) get(t *testing.T, id int64) models.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		t.Fatalf("user %d not found", id)
	}
	return row
}

// --- refresh tokens repo ---

// fakeRefreshRepo keeps rows in memory. Claim checks and revokes under one
// lock, like the conditional UPDATE it stands in for.
type fakeRefreshRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.RefreshToken

	createErr error
	claimErr  error
	revokeErr error
	listErr   error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: map[int64]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	token.ID = f.nextID
	// creation order is id order
	token.CreatedAt = time.Unix(1_700_000_000+f.nextID, 0)
	row := *token
	f.rows[row.ID] = &row
	return token, nil
}

func (f *fakeRefreshRepo) Claim(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	for _, row := range f.rows {
		if row.TokenHash == hash && row.Valid(now) {
			revoked := now
			row.RevokedAt = &revoked
			out := *row
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	for _, row := range f.rows {
		if row.TokenHash == hash && row.RevokedAt == nil {
			revoked := now
			row.RevokedAt = &revoked
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID && row.Valid(now) {
			revoked := now
			row.RevokedAt = &revoked
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) RevokeByID(ctx context.Context, id, userID int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	row, ok := f.rows[id]
	if !ok || row.UserID != userID || !row.Valid(now) {
		return common.ErrorNotFound
	}
	revoked := now
	row.RevokedAt = &revoked
	return nil
}

func (f *fakeRefreshRepo) ListActive(ctx context.Context, userID int64, now time.Time) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.SessionSummary, 0)
	for _, row := range f.rows {
		if row.UserID == userID && row.Valid(now) {
			out = append(out, models.SessionSummary{ID: row.ID, UserAgent: row.UserAgent, CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRefreshRepo) validCount(userID int64, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.UserID == userID && row.Valid(now) {
			n++
		}
	}
	return n
}

func (f *fakeRefreshRepo) byHash(hash string) *models.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TokenHash == hash {
			out := *row
			return &out
		}
	}
	return nil
}

// --- repo manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// --- wiring ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

type harness struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	rm       *fakeRepoManager
	hasher   *plainHasher
	clock    *fakeClock
	cfg      *config.Config
	users    *UserService
	sessions *SessionService
	auth     *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock := newSQLMockDB(t)
	h := &harness{
		db:     db,
		mock:   mock,
		rm:     &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo()},
		hasher: &plainHasher{},
		clock:  newFakeClock(),
		cfg:    testConfig(),
	}
	issuer := auth.NewIssuer(h.cfg)
	h.users = NewUserService(db, h.rm, h.hasher, issuer, h.cfg, logging.Nop{}, nil)
	h.users.now = h.clock.Now
	h.sessions = NewSessionService(db, h.rm, issuer, h.cfg, logging.Nop{}, nil)
	h.sessions.now = h.clock.Now
	h.auth = NewAuthService(h.users, h.sessions)
	return h
}

// expectTx queues n successful (commit) and m failed (rollback) transactions.
func (h *harness) expectTx(commits, rollbacks int) {
	for i := 0; i < commits+rollbacks; i++ {
		h.mock.ExpectBegin()
	}
	for i := 0; i < commits; i++ {
		h.mock.ExpectCommit()
	}
	for i := 0; i < rollbacks; i++ {
		h.mock.ExpectRollback()
	}
}

func (h *harness) register(t *testing.T, name, email, password string) *models.User {
	t.Helper()
	h.expectTx(1, 0)
	u, _, err := h.users.Register(context.Background(), name, email, password)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}
