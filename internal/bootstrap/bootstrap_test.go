package bootstrap

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfirmer struct{}

func (stubConfirmer) ConfirmPayment(ctx context.Context, bookingID int64, checkoutSessionID string) (*domain.Booking, error) {
	return &domain.Booking{ID: bookingID, Status: domain.BookingStatusAccepted, PaymentStatus: domain.PaymentStatusPaid}, nil
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()

	cfg.TokenStore.Driver = "memory"
	store, closer, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.MemoryStore{}, store)
	assert.Nil(t, closer)

	cfg.TokenStore.Driver = "file"
	cfg.TokenStore.Path = filepath.Join(t.TempDir(), "session.json")
	store, _, err = OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.FileStore{}, store)

	cfg.TokenStore.Driver = "etcd"
	_, _, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewApp_MemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.TokenStore.Driver = "memory"

	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Session.Authenticated())
	assert.Nil(t, app.Producer)
	assert.Nil(t, app.Consumer)
	assert.NotNil(t, app.Bookings)
	assert.NotNil(t, app.Tailors)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, lis, NewPaymentRouter(stubConfirmer{}, nil)) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
