package di

import (
	"context"
	"errors"
	"testing"

	"safereport/internal/config"
	"safereport/internal/observability"
	"safereport/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer() *ServiceContainer {
	return NewServiceContainer(&config.Config{}, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))
}

func TestGetServiceAs(t *testing.T) {
	sc := newTestContainer()
	alerts := services.NewAlertService(&config.Config{}, sc.GetLogger())
	sc.services["alert"] = alerts

	got, err := sc.GetAlertService()
	require.NoError(t, err)
	assert.Same(t, alerts, got)

	_, err = GetServiceAs[services.UserServiceInterface](sc, "alert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service alert is not of expected type")

	_, err = sc.GetReportService()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service report not found")
}

func TestShutdown_RunsInReverseOrder(t *testing.T) {
	sc := newTestContainer()

	var order []string
	sc.shutdownFuncs = append(sc.shutdownFuncs,
		func(context.Context) error { order = append(order, "database"); return nil },
		func(context.Context) error { order = append(order, "alerts"); return errors.New("smtp hung") },
	)

	err := sc.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp hung")
	assert.Equal(t, []string{"alerts", "database"}, order)

	// A second shutdown has nothing left to do
	assert.NoError(t, sc.Shutdown(context.Background()))
}
