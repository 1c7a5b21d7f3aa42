package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	opts := db.DefaultOpenOptions()
	opts.DataDir = t.TempDir()
	database, err := db.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func testItem(id string, p period.Periodicity, created time.Time) workitem.Item {
	item := workitem.New("Item "+id, "u-1", p)
	item.ID = id
	item.CreatedAt = created
	item.UpdatedAt = created
	return item
}
