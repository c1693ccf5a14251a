//go:build integration

package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	service "github.com/okian/xsrledger/internal/app"
	"github.com/okian/xsrledger/internal/adapters/connector"
	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/internal/domain/model"
)

func TestServiceAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("xsr"),
		tcpostgres.WithUsername("xsr"),
		tcpostgres.WithPassword("xsr"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	store, err := repository.NewPostgresStore(ctx, dsn)
	require.NoError(t, err)

	payload := coursesV1
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(connector.HeaderSubscriptionKey))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer api.Close()

	src := config.Source{Name: "courses", Endpoint: api.URL, Credential: "secret", Variant: "Course", Format: config.FormatJSON}
	svc := service.New(
		service.WithStore(store),
		service.WithFetcher(connector.New(connector.WithTimeout(5*time.Second))),
		service.WithPublisher("ACE"),
		service.WithSources(src),
	)
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	reports, err := svc.RunAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 2, reports[0].Inserted)

	reports, err = svc.RunAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, reports[0].Unchanged)

	entries, err := svc.History(ctx, keyHash("C1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.StatusActive, entries[0].Status)

	n, err := svc.CopyToTarget(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
