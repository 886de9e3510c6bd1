package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpay/burn-relayer/relayer/store"
)

func TestOpenInMemoryDBMigratesSchema(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	assert.True(t, database.Client().Migrator().HasTable(&store.TransactionRecord{}))
}

func TestOpenInMemoryDBWithoutMigration(t *testing.T) {
	database, err := OpenInMemoryDB(false)
	require.NoError(t, err)
	defer database.Close()

	assert.False(t, database.Client().Migrator().HasTable(&store.TransactionRecord{}))
}

func TestOpenFileDBCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	database, err := OpenFileDB(dir, "relayer.db", true)
	require.NoError(t, err)
	defer database.Close()

	record := &store.TransactionRecord{
		Lt: "1", Hash: "a", UserAddress: "0:user", AmountNanotons: "100", Status: store.StatusPending,
	}
	require.NoError(t, database.Client().Create(record).Error)

	var count int64
	require.NoError(t, database.Client().Model(&store.TransactionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCloseIsIdempotentEnough(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	require.NoError(t, database.Close())
}
