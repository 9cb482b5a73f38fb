package testhelpers

import (
	"testing"

	"sprinklerprep/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDB_MigratesProgressTables(t *testing.T) {
	db := SetupTestDB(t)
	for _, m := range models.ProgressModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}

	DropTable(t, db, &models.GameHistory{})
	assert.False(t, db.Migrator().HasTable(&models.GameHistory{}))
}

func TestSetupTestDB_IsolatedPerTest(t *testing.T) {
	t.Run("first", func(t *testing.T) {
		db := SetupTestDB(t)
		require.NoError(t, db.Create(&models.UserProgress{UserID: "u1"}).Error)
	})
	t.Run("second", func(t *testing.T) {
		db := SetupTestDB(t)
		var n int64
		require.NoError(t, db.Model(&models.UserProgress{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}
