package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/db"
)

type fakeQueries struct {
	mu       sync.Mutex
	users    map[pgtype.UUID]db.User
	sessions map[string]db.Session
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		users:    make(map[pgtype.UUID]db.User),
		sessions: make(map[string]db.Session),
	}
}

func (f *fakeQueries) addUser(email, password string, roles ...string) db.User {
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	u := db.User{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    pgTimestamp(time.Now()),
		UpdatedAt:    pgTimestamp(time.Now()),
	}
	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	return u
}

func (f *fakeQueries) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := db.User{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Phone:        arg.Phone,
		Roles:        arg.Roles,
		CreatedAt:    pgTimestamp(time.Now()),
		UpdatedAt:    pgTimestamp(time.Now()),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeQueries) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQueries) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeQueries) ListUsers(_ context.Context, arg db.ListUsersParams) ([]db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.User
	for _, u := range f.users {
		if arg.Query == "" || strings.Contains(strings.ToLower(u.Email), strings.ToLower(arg.Query)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeQueries) CountUsers(ctx context.Context, query string) (int64, error) {
	rows, _ := f.ListUsers(ctx, db.ListUsersParams{Query: query})
	return int64(len(rows)), nil
}

func (f *fakeQueries) UpdateUserRoles(_ context.Context, arg db.UpdateUserRolesParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[arg.ID]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	u.Roles = arg.Roles
	f.users[arg.ID] = u
	return u, nil
}

func (f *fakeQueries) CreateSession(_ context.Context, arg db.CreateSessionParams) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := db.Session{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		UserID:       arg.UserID,
		RefreshToken: arg.RefreshToken,
		UserAgent:    arg.UserAgent,
		Ip:           arg.Ip,
		ExpiresAt:    arg.ExpiresAt,
	}
	f.sessions[arg.RefreshToken] = s
	return s, nil
}

func (f *fakeQueries) GetSessionByToken(_ context.Context, token string) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return db.Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeQueries) RotateSessionToken(_ context.Context, arg db.RotateSessionTokenParams) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.sessions {
		if s.ID == arg.ID {
			delete(f.sessions, token)
			s.RefreshToken = arg.RefreshToken
			s.ExpiresAt = arg.ExpiresAt
			f.sessions[arg.RefreshToken] = s
			return s, nil
		}
	}
	return db.Session{}, pgx.ErrNoRows
}

func (f *fakeQueries) DeleteSessionByToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeQueries) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func newTestService(t interface{ Fatalf(string, ...any) }, queries *fakeQueries) *Service {
	svc, err := NewService(Config{
		Queries:         queries,
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
