package controller

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"unihub/models"
)

func dryRun(t *testing.T, dialector gorm.Dialector) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestForUpdateLocksOnPostgres(t *testing.T) {
	tests := []struct {
		name      string
		dialector gorm.Dialector
		locked    bool
	}{
		{"postgres", postgres.New(postgres.Config{DSN: "host=localhost user=unihub dbname=unihub sslmode=disable"}), true},
		{"sqlite", sqlite.Open(filepath.Join(t.TempDir(), "dry.db")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dryRun(t, tt.dialector)

			// The same handle locks every row it reads.
			locked := forUpdate(db)
			for _, model := range []interface{}{&models.Event{}, &models.Team{}} {
				sql := locked.First(model, 7).Statement.SQL.String()
				assert.Equal(t, tt.locked, strings.Contains(sql, "FOR UPDATE"), sql)
			}

			sql := db.First(&models.Event{}, 7).Statement.SQL.String()
			assert.NotContains(t, sql, "FOR UPDATE")
		})
	}
}
