package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppliesMigrationByName(t *testing.T) {
	tests := []struct {
		name      string
		wantTable string
	}{
		{"cache", "comparison_cache"},
		{"config", "settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(Config{
				Path:    filepath.Join(t.TempDir(), tt.name+".db"),
				Profile: ProfileStandard,
				Name:    tt.name,
			})
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, db.Migrate())

			var count int
			err = db.Conn().QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tt.wantTable,
			).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		Name: "cache",
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestMigrate_UnknownNameIsSkipped(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "other.db"),
		Name: "other",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "x.db"),
		Name: "cache",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.True(t, filepath.IsAbs(db.Path()))
}

func TestBuildConnectionString_ProfilePragmas(t *testing.T) {
	cacheStr := buildConnectionString("/tmp/cache.db", ProfileCache)
	assert.Contains(t, cacheStr, "journal_mode(WAL)")
	assert.Contains(t, cacheStr, "synchronous(OFF)")

	standardStr := buildConnectionString("/tmp/std.db", ProfileStandard)
	assert.Contains(t, standardStr, "synchronous(NORMAL)")
	assert.False(t, strings.Contains(standardStr, "synchronous(OFF)"))
}
