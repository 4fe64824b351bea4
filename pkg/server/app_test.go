package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/repository"
	"OddsPulse/internal/service/maintenance"
	"OddsPulse/internal/usecase"
	"OddsPulse/pkg/cache"
	"OddsPulse/pkg/config"
	xhttp "OddsPulse/pkg/http"
	"OddsPulse/pkg/metrics"
)

func TestAppStartShutdown(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second

	store := repository.NewMemoryRecordStore()
	sched := maintenance.NewScheduler(store, metrics.Nop{}, time.Second, nil)
	require.NoError(t, sched.Register(cfg.Maintenance.CompactCron))

	app := New(Deps{
		Config:     cfg,
		HTTPServer: xhttp.NewServer(nil, xhttp.WithHost(cfg.Server.Host), xhttp.WithPort(cfg.Server.Port)),
		Store:      store,
		Cache:      cache.NewMemoryCache(),
		Processor:  usecase.NewRecordProcessor(nil, store, metrics.Nop{}, usecase.BackendDirect),
		Scheduler:  sched,
	})

	require.NoError(t, app.Start())
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestShutdownWithoutOptionalParts(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	store := repository.NewMemoryRecordStore()
	require.NoError(t, store.Create(context.Background(), &models.Record{ID: "r1", UserID: "u"}))

	app := New(Deps{Config: cfg, Store: store})
	assert.NoError(t, app.Shutdown(context.Background()))
}
