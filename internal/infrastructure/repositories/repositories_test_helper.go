package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createGenerationRequestTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE generation_requests (
		id TEXT PRIMARY KEY,
		quote_id TEXT UNIQUE NOT NULL,
		owner_id TEXT NOT NULL,
		prompt_text TEXT NOT NULL,
		source_image_url TEXT NOT NULL,
		status TEXT NOT NULL,
		tx_hash TEXT,
		result_image_url TEXT,
		error_message TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		owner_id TEXT UNIQUE NOT NULL,
		wallet_address TEXT,
		fid INTEGER,
		role TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}
