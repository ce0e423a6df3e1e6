package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	for name, files := range map[string]fs.FS{"postgres": Postgres(), "sqlite": SQLite()} {
		t.Run(name, func(t *testing.T) {
			body, err := fs.ReadFile(files, "001_init.sql")
			require.NoError(t, err)
			sql := string(body)
			for _, table := range []string{"observations", "care_plan_revision", "alerts", "alert_timeline"} {
				assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
			}
			assert.True(t, strings.Contains(sql, "alerts_one_active_per_rule"), "active-alert uniqueness index missing")
		})
	}
}
