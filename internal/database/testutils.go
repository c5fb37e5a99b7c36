package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

var (
	testDB     *sqlx.DB
	testDBErr  error
	testDBOnce sync.Once
)

// GetTestDB returns a schema-initialized connection shared by the repository
// tests of one package. It uses MYSQL_TEST_DSN when set, otherwise it starts
// a throwaway MySQL container. Tests are skipped in -short mode.
func GetTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL integration test in short mode")
	}
	testDBOnce.Do(func() {
		dsn := os.Getenv("MYSQL_TEST_DSN")
		if dsn == "" {
			dsn, testDBErr = startMySQLContainer()
			if testDBErr != nil {
				return
			}
		}
		testDB, testDBErr = OpenDSN(dsn)
		if testDBErr != nil {
			return
		}
		testDBErr = InitializeSchema(context.Background(), testDB)
	})
	if testDBErr != nil {
		t.Skipf("MySQL unavailable: %v", testDBErr)
	}
	require.NotNil(t, testDB)
	return testDB
}

// startMySQLContainer boots MySQL 8 and returns a DSN with the same options
// Open uses. The container lives for the whole test binary.
func startMySQLContainer() (string, error) {
	ctx := context.Background()
	container, err := mysql.RunContainer(ctx,
		testcontainers.WithImage("mysql:8.0.36"),
		mysql.WithDatabase("booking"),
		mysql.WithUsername("booking"),
		mysql.WithPassword("booking"),
	)
	if err != nil {
		return "", err
	}
	readyCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	return container.ConnectionString(readyCtx, "charset=utf8mb4", "parseTime=true", "loc=UTC", "multiStatements=true")
}
