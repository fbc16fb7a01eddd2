package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dgsync/internal/domain/entity"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "dgsync.db")}, entity.DefaultCatalog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func mustKind(t *testing.T, s *Store, name string) *entity.Kind {
	t.Helper()
	kind, err := s.catalog.Kind(name)
	require.NoError(t, err)
	return kind
}

// normalized validates a candidate the way the resolver does before storing it.
func normalized(t *testing.T, kind *entity.Kind, candidate entity.Record) entity.Record {
	t.Helper()
	rec, err := kind.Normalize(candidate)
	require.NoError(t, err)
	return rec
}

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

// seedSpaceAndAccount inserts a space and an account and returns their ids.
func seedSpaceAndAccount(t *testing.T, s *Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	entities := NewEntityStore(s)

	spaceKind := mustKind(t, s, "Space")
	space, err := entities.Insert(ctx, spaceKind, normalized(t, spaceKind, entity.Record{
		"url": "https://roamresearch.com/#/app/test", "name": "test", "platform": "Roam",
	}))
	require.NoError(t, err)

	accountKind := mustKind(t, s, "PlatformAccount")
	account, err := entities.Insert(ctx, accountKind, normalized(t, accountKind, entity.Record{
		"name": "Ada", "platform": "Roam", "account_local_id": "ada@example.com",
	}))
	require.NoError(t, err)
	return space.ID, account.ID
}

func unitVector(dims, hot int) []float64 {
	v := make([]float64, dims)
	v[hot%dims] = 1
	return v
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, entity.DefaultCatalog())
	require.Error(t, err)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}
