package migrations_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/encounter/migrations"
)

func TestFS_PairsUpAndDown(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %q", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestFS_CreatesCombatsTable(t *testing.T) {
	b, err := fs.ReadFile(migrations.FS, "000001_create_combats.up.sql")
	require.NoError(t, err)
	sql := string(b)
	for _, col := range []string{"id", "campaign_id", "status", "current_round", "snapshot", "updated_at"} {
		assert.Contains(t, sql, col)
	}
	assert.Contains(t, sql, "JSONB")
}

func TestRun_RejectsBadInput(t *testing.T) {
	_, err := migrations.Run("postgres://u:p@localhost:1/db?sslmode=disable", migrations.Up, -1)
	assert.Error(t, err)
}
