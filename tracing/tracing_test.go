package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/config"
)

func TestInitDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown := Init(context.Background(), config.OTelConfig{Enabled: false}, zap.NewNop())
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}
