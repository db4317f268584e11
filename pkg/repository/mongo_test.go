package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/medreza/agt-claim-service/pkg/database"
	"github.com/stretchr/testify/require"
)

func TestMongoClaimStore(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx := context.Background()

	client, err := database.InitMongo(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	db := client.Database(fmt.Sprintf("agt_test_%d", time.Now().UnixNano()))
	defer db.Drop(ctx)

	store := NewMongoClaimStore(db, 24*time.Hour)
	require.NoError(t, store.EnsureIndexes(ctx))

	testClaimStore(t, store)
}
