package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/database"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/ordernum"
	"github.com/safar/kitrunner/internal/service"
	"github.com/safar/kitrunner/internal/store"
	"github.com/safar/kitrunner/internal/store/postgres"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "container host")

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err, "container port")

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "open database")
	require.NoError(t, db.PingContext(ctx), "ping database")
	require.NoError(t, database.Migrate(ctx, db), "run migrations")

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

type app struct {
	store  *postgres.Store
	orders *service.OrderService
}

// newApp wires the order service over a seeded postgres store with a flat
// 18.50 delivery quote.
func newApp(t *testing.T, db *sql.DB) *app {
	t.Helper()

	s := postgres.New(db)
	require.NoError(t, store.Seed(context.Background(), s))

	numbers, err := ordernum.NewGenerator(7)
	require.NoError(t, err)

	quote := delivery.Quote{Total: dec("18.50"), Delivery: dec("18.50")}
	pricer := service.NewPricer(delivery.FlatQuoter{Value: quote}, zap.NewNop())

	return &app{
		store:  s,
		orders: service.NewOrderService(s, pricer, numbers, 2, zap.NewNop()),
	}
}
