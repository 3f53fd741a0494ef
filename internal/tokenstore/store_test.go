package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() domain.Session {
	lat := 26.19
	return domain.Session{
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		AccessExpiresAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		CurrentUser:     &domain.User{ID: 7, Username: "meera", Role: domain.RoleTailor, Latitude: &lat},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, want.AccessToken, loaded.AccessToken)
	assert.Equal(t, want.RefreshToken, loaded.RefreshToken)
	assert.True(t, want.AccessExpiresAt.Equal(loaded.AccessExpiresAt))
	require.NotNil(t, loaded.CurrentUser)
	assert.Equal(t, "meera", loaded.CurrentUser.Username)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStore_SaveReplacesWholeDocument(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession()))
	require.NoError(t, store.Save(ctx, domain.Session{AccessToken: "access-2", RefreshToken: "refresh-2"}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "access-2", loaded.AccessToken)
	assert.True(t, loaded.AccessExpiresAt.IsZero())
	assert.Nil(t, loaded.CurrentUser)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSession()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	loaded.AccessToken = "mutated"

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", again.AccessToken)
}

func TestPGStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db, "default")
	s := sampleSession()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO client_sessions`)).
		WithArgs("default", "access-1", "refresh-1", s.AccessExpiresAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db, "default")
	expires := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT access_token, refresh_token, access_expires_at, user_record FROM client_sessions WHERE profile=$1`)).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "access_expires_at", "user_record"}).
			AddRow("access-1", "refresh-1", expires, []byte(`{"id":7,"username":"meera","email":"","role":"tailor"}`)))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)
	assert.True(t, expires.Equal(loaded.AccessExpiresAt))
	assert.Equal(t, domain.RoleTailor, loaded.CurrentUser.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_LoadEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT access_token`).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "access_expires_at", "user_record"}))

	loaded, err := NewPostgresStore(db, "default").Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Clear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM client_sessions`).WithArgs("default").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db, "default").Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisStore(t *testing.T) {
	store := NewRedisStore(config.RedisConfig{Addr: "localhost:6379"}, "tailorbook", "default")
	assert.NotNil(t, store)
	assert.Equal(t, "tailorbook:default:session", store.key)
}
