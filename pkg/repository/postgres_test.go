package repository

import (
	"context"
	"os"
	"testing"

	"github.com/medreza/agt-claim-service/pkg/database"
	"github.com/stretchr/testify/require"
)

func TestPostgresClaimStore(t *testing.T) {
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set")
	}

	pool, err := database.InitDB(context.Background(), dbURL)
	require.NoError(t, err)
	defer pool.Close()

	testClaimStore(t, NewPostgresClaimStore(pool))
}
