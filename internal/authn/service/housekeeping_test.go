package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/internal/authn/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func TestHousekeeping_Sweep(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	epochs := epoch.NewManual(50)

	live := storedSession(t, 100)
	expired := storedSession(t, 10)
	require.NoError(t, st.Sessions().Create(ctx, live))
	require.NoError(t, st.Sessions().Create(ctx, expired))
	require.NoError(t, st.Nonces().MarkUsed(ctx, "stale-nonce", 10))

	hk := service.NewHousekeepingService(st, epochs, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Sweep(ctx)

	_, err := st.Sessions().Get(ctx, expired.ID, 50)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Sessions().Get(ctx, live.ID, 50)
	require.NoError(t, err)

	// The swept nonce can be marked again; it could not replay anyway.
	require.NoError(t, st.Nonces().MarkUsed(ctx, "stale-nonce", 200))
}

func TestHousekeeping_StartStop(t *testing.T) {
	st := memory.NewStore()
	epochs := epoch.NewManual(0)

	hk := service.NewHousekeepingService(st, epochs, slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond)
	hk.Start()
	time.Sleep(30 * time.Millisecond)
	hk.Stop()
}
