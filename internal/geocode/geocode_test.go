package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetPlace(ctx context.Context, key string) (*domain.Place, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Place), args.Error(1)
}

func (m *MockCache) SetPlace(ctx context.Context, key string, place *domain.Place) error {
	args := m.Called(ctx, key, place)
	return args.Error(0)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithHTTPClient(srv.Client()), WithLimiter(rate.NewLimiter(rate.Inf, 1))}, opts...)
	return New(config.GeocodeConfig{
		BaseURL:       srv.URL,
		UserAgent:     "tailorbook-test/1.0",
		CountryCodes:  "in",
		RegionContext: "India",
	}, opts...)
}

func TestQueryVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"Subansiri Hostel., IIT", "Subansiri Hostel , IIT", "Subansiri Hostel , IIT, India"},
		QueryVariants("  Subansiri Hostel., IIT ", "India"))

	assert.Equal(t, []string{"Guwahati"}, QueryVariants("Guwahati", ""))
	assert.Equal(t, []string{"Pune, India"}, QueryVariants("Pune, India", "india"))
	assert.Len(t, QueryVariants("a.b", "India"), 3)
	for _, q := range []string{" Fancy.Bazar.. Road ", "x", "Near IIT. Campus,", ""} {
		assert.LessOrEqual(t, len(QueryVariants(q, "India")), 3, q)
	}
}

func TestPickBest(t *testing.T) {
	low, high := 0.2, 0.7

	best, ok := pickBest([]result{{DisplayName: "first"}, {DisplayName: "low", Importance: &low}, {DisplayName: "high", Importance: &high}})
	require.True(t, ok)
	assert.Equal(t, "high", best.DisplayName)

	best, ok = pickBest([]result{{DisplayName: "first"}, {DisplayName: "second"}})
	require.True(t, ok)
	assert.Equal(t, "first", best.DisplayName)

	_, ok = pickBest(nil)
	assert.False(t, ok)
}

func TestForward_TriesVariantsUntilMatch(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()

		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "tailorbook-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "in", r.URL.Query().Get("countrycodes"))

		if r.URL.Query().Get("q") != "Fancy Bazar, India" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"26.18","lon":"91.74","display_name":"Fancy Bazar, Guwahati","importance":0.3},
			{"lat":"26.19","lon":"91.75","display_name":"Fancy Bazar Market","importance":0.6}]`))
	})

	place, err := client.Forward(context.Background(), "Fancy Bazar")

	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, "Fancy Bazar Market", place.Name)
	assert.InDelta(t, 26.19, place.Lat, 1e-9)
	assert.InDelta(t, 91.75, place.Lng, 1e-9)
	assert.Equal(t, []string{"Fancy Bazar", "Fancy Bazar, India"}, queries)
}

func TestForward_NoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	place, err := client.Forward(context.Background(), "nowhere at all")
	assert.NoError(t, err)
	assert.Nil(t, place)

	place, err = client.Forward(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Nil(t, place)
}

func TestForward_UsesCache(t *testing.T) {
	cache := &MockCache{}
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"lat":"18.52","lon":"73.85","display_name":"Pune"}]`))
	}, WithCache(cache))
	ctx := context.Background()

	cache.On("GetPlace", ctx, "fwd:pune").Return(nil, nil).Once()
	cache.On("SetPlace", ctx, "fwd:pune", &domain.Place{Lat: 18.52, Lng: 73.85, Name: "Pune"}).Return(nil).Once()

	place, err := client.Forward(ctx, "Pune")
	require.NoError(t, err)
	assert.Equal(t, "Pune", place.Name)

	cache.On("GetPlace", ctx, "fwd:pune").Return(&domain.Place{Lat: 18.52, Lng: 73.85, Name: "Pune"}, nil).Once()

	place, err = client.Forward(ctx, "  pune ")
	require.NoError(t, err)
	assert.Equal(t, "Pune", place.Name)
	assert.Equal(t, 1, calls)
	cache.AssertExpectations(t)
}

func TestForward_BreakerOpens(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	// three failing variants trip the breaker
	_, err := client.Forward(context.Background(), "Dispur.")
	require.Error(t, err)

	_, err = client.Forward(context.Background(), "Dispur")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestReverse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		if r.URL.Query().Get("lat") == "0" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		_, _ = w.Write([]byte(`{"lat":"26.1445","lon":"91.7362","display_name":"Guwahati, Assam"}`))
	})

	place, err := client.Reverse(context.Background(), 26.1445, 91.7362)
	require.NoError(t, err)
	assert.Equal(t, "Guwahati, Assam", place.Name)

	place, err = client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Nil(t, place)
}
