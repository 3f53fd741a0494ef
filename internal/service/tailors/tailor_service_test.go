package tailors

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) SearchTailors(ctx context.Context, f domain.TailorFilters) ([]domain.TailorProfile, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TailorProfile), args.Error(1)
}

func (m *MockDirectory) GetTailor(ctx context.Context, username string) (*domain.TailorProfile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TailorProfile), args.Error(1)
}

func (m *MockDirectory) TailorServices(ctx context.Context, username string) ([]domain.Service, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockDirectory) TailorReviews(ctx context.Context, username string) ([]domain.Review, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Forward(ctx context.Context, query string) (*domain.Place, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Place), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetTailors(ctx context.Context, key string) ([]domain.TailorProfile, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TailorProfile), args.Error(1)
}

func (m *MockCache) SetTailors(ctx context.Context, key string, tailors []domain.TailorProfile) error {
	args := m.Called(ctx, key, tailors)
	return args.Error(0)
}

func TestSearch_GeocodesFreeTextLocation(t *testing.T) {
	directory := &MockDirectory{}
	geocoder := &MockGeocoder{}
	service := NewTailorService(directory, WithGeocoder(geocoder))
	ctx := context.Background()

	place := &domain.Place{Lat: 26.19, Lng: 91.75, Name: "Fancy Bazar"}
	geocoder.On("Forward", ctx, "Fancy Bazar").Return(place, nil).Once()
	directory.On("SearchTailors", ctx, mock.MatchedBy(func(f domain.TailorFilters) bool {
		return f.Lat != nil && *f.Lat == 26.19 && f.Lng != nil && *f.Lng == 91.75 && f.Specialization == "kurti-tailoring"
	})).Return([]domain.TailorProfile{{Username: "meera"}}, nil).Once()

	result, err := service.Search(ctx, domain.TailorFilters{Location: "Fancy Bazar", Specialization: "kurti-tailoring"})

	require.NoError(t, err)
	assert.Equal(t, place, result.Origin)
	require.Len(t, result.Tailors, 1)
	directory.AssertExpectations(t)
	geocoder.AssertExpectations(t)
}

func TestSearch_GeocoderFailureFallsBackToText(t *testing.T) {
	directory := &MockDirectory{}
	geocoder := &MockGeocoder{}
	service := NewTailorService(directory, WithGeocoder(geocoder))
	ctx := context.Background()

	geocoder.On("Forward", ctx, "Dispur").Return(nil, errors.New("rate limited")).Once()
	directory.On("SearchTailors", ctx, domain.TailorFilters{Location: "Dispur"}).Return([]domain.TailorProfile{}, nil).Once()

	result, err := service.Search(ctx, domain.TailorFilters{Location: "Dispur"})

	require.NoError(t, err)
	assert.Nil(t, result.Origin)
	directory.AssertExpectations(t)
}

func TestSearch_UnknownSpecialization(t *testing.T) {
	directory := &MockDirectory{}
	service := NewTailorService(directory)

	_, err := service.Search(context.Background(), domain.TailorFilters{Specialization: "suit-tailoring"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "specialization")
	directory.AssertNotCalled(t, "SearchTailors", mock.Anything, mock.Anything)
}

func TestSearch_CoordinatesTogether(t *testing.T) {
	lat := 12.9
	_, err := NewTailorService(&MockDirectory{}).Search(context.Background(), domain.TailorFilters{Lat: &lat})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSearch_CacheHitSkipsDirectory(t *testing.T) {
	directory := &MockDirectory{}
	cache := &MockCache{}
	service := NewTailorService(directory, WithCache(cache))
	ctx := context.Background()
	lat, lng := 26.19012, 91.75049

	cached := []domain.TailorProfile{{Username: "meera"}}
	cache.On("GetTailors", ctx, "lat=26.19&lng=91.75&radius_km=5").Return(cached, nil).Once()

	result, err := service.Search(ctx, domain.TailorFilters{Lat: &lat, Lng: &lng, RadiusKM: 5})

	require.NoError(t, err)
	assert.Equal(t, cached, result.Tailors)
	directory.AssertNotCalled(t, "SearchTailors", mock.Anything, mock.Anything)
}

func TestSearch_CacheMissStores(t *testing.T) {
	directory := &MockDirectory{}
	cache := &MockCache{}
	service := NewTailorService(directory, WithCache(cache))
	ctx := context.Background()

	tailors := []domain.TailorProfile{{Username: "meera"}}
	cache.On("GetTailors", ctx, "specialization=blouse-tailoring").Return(nil, nil).Once()
	directory.On("SearchTailors", ctx, domain.TailorFilters{Specialization: "blouse-tailoring"}).Return(tailors, nil).Once()
	cache.On("SetTailors", ctx, "specialization=blouse-tailoring", tailors).Return(nil).Once()

	result, err := service.Search(ctx, domain.TailorFilters{Specialization: " Blouse Tailoring "})

	require.NoError(t, err)
	assert.Equal(t, tailors, result.Tailors)
	cache.AssertExpectations(t)
	directory.AssertExpectations(t)
}

func TestGet_FiltersInactiveServices(t *testing.T) {
	directory := &MockDirectory{}
	service := NewTailorService(directory)
	ctx := context.Background()

	directory.On("GetTailor", mock.Anything, "meera").Return(&domain.TailorProfile{Username: "meera"}, nil).Once()
	directory.On("TailorServices", mock.Anything, "meera").Return([]domain.Service{
		{ID: 1, Name: "Blouse", IsActive: true},
		{ID: 2, Name: "Lehenga", IsActive: false},
	}, nil).Once()
	directory.On("TailorReviews", mock.Anything, "meera").Return([]domain.Review{{ID: 5, Rating: 4}}, nil).Once()

	detail, err := service.Get(ctx, "meera")

	require.NoError(t, err)
	assert.Equal(t, "meera", detail.Profile.Username)
	require.Len(t, detail.Services, 1)
	assert.Equal(t, int64(1), detail.Services[0].ID)
	assert.Len(t, detail.Reviews, 1)
}

func TestGet_PropagatesError(t *testing.T) {
	directory := &MockDirectory{}
	service := NewTailorService(directory)

	notFound := &domain.APIError{Status: 404, Detail: "Not found."}
	directory.On("GetTailor", mock.Anything, "ghost").Return(nil, notFound)
	directory.On("TailorServices", mock.Anything, "ghost").Return([]domain.Service{}, nil)
	directory.On("TailorReviews", mock.Anything, "ghost").Return([]domain.Review{}, nil)

	_, err := service.Get(context.Background(), "ghost")

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}
