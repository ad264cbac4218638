package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *SQLStorage {
	t.Helper()
	store, err := NewFromSQLite(filepath.Join(t.TempDir(), "watchers.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLStorage_Alerts(t *testing.T) {
	testAlertLifecycle(t, newSQLStore(t))
}

func TestSQLStorage_Orders(t *testing.T) {
	testOrderLifecycle(t, newSQLStore(t))
}
