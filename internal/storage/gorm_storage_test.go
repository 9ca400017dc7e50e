package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGormStorageSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "fuelkl.db")
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer st.Close()

	require.IsType(t, &GormStorage{}, st)
	exerciseStorage(t, st)
}
