package tailors

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/marketplace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TailorUseCase interface {
	Search(ctx context.Context, f domain.TailorFilters) (*SearchResult, error)
	Get(ctx context.Context, username string) (*Detail, error)
}

type Directory interface {
	SearchTailors(ctx context.Context, f domain.TailorFilters) ([]domain.TailorProfile, error)
	GetTailor(ctx context.Context, username string) (*domain.TailorProfile, error)
	TailorServices(ctx context.Context, username string) ([]domain.Service, error)
	TailorReviews(ctx context.Context, username string) ([]domain.Review, error)
}

type Geocoder interface {
	Forward(ctx context.Context, query string) (*domain.Place, error)
}

type TailorCache interface {
	GetTailors(ctx context.Context, key string) ([]domain.TailorProfile, error)
	SetTailors(ctx context.Context, key string, tailors []domain.TailorProfile) error
}

type SearchResult struct {
	Tailors []domain.TailorProfile
	// Origin is the geocoded location the distances are measured from.
	Origin *domain.Place
}

type Detail struct {
	Profile  domain.TailorProfile
	Services []domain.Service
	Reviews  []domain.Review
}

type TailorService struct {
	directory Directory
	geocoder  Geocoder
	cache     TailorCache
	log       *zap.Logger
}

type Option func(*TailorService)

func WithGeocoder(g Geocoder) Option {
	return func(s *TailorService) { s.geocoder = g }
}

func WithCache(c TailorCache) Option {
	return func(s *TailorService) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *TailorService) { s.log = l }
}

func NewTailorService(directory Directory, opts ...Option) *TailorService {
	s := &TailorService{directory: directory, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TailorService) Search(ctx context.Context, f domain.TailorFilters) (*SearchResult, error) {
	if raw := strings.TrimSpace(f.Specialization); raw != "" {
		resolved, ok := domain.ResolveSpecialization(raw)
		if !ok {
			return nil, &domain.ValidationError{Fields: map[string]string{
				"specialization": fmt.Sprintf("Unknown specialization %q.", raw),
			}}
		}
		f.Specialization = resolved
	}
	if (f.Lat == nil) != (f.Lng == nil) {
		return nil, &domain.ValidationError{Fields: map[string]string{"location": "Latitude and longitude must be given together."}}
	}

	result := &SearchResult{}
	if f.Lat == nil && strings.TrimSpace(f.Location) != "" && s.geocoder != nil {
		place, err := s.geocoder.Forward(ctx, f.Location)
		switch {
		case err != nil:
			s.log.Warn("geocoding failed, searching by text", zap.String("location", f.Location), zap.Error(err))
		case place != nil:
			lat, lng := place.Lat, place.Lng
			f.Lat, f.Lng = &lat, &lng
			result.Origin = place
		}
	}

	key := cacheKey(f)
	if s.cache != nil {
		if cached, err := s.cache.GetTailors(ctx, key); err == nil && cached != nil {
			result.Tailors = cached
			return result, nil
		}
	}

	tailors, err := s.directory.SearchTailors(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetTailors(ctx, key, tailors)
	}
	result.Tailors = tailors
	return result, nil
}

// Get loads a tailor's profile with active services and reviews.
func (s *TailorService) Get(ctx context.Context, username string) (*Detail, error) {
	var (
		detail   Detail
		services []domain.Service
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.directory.GetTailor(gctx, username)
		if err != nil {
			return fmt.Errorf("tailor %s: %w", username, err)
		}
		detail.Profile = *p
		return nil
	})
	g.Go(func() error {
		var err error
		services, err = s.directory.TailorServices(gctx, username)
		if err != nil {
			return fmt.Errorf("services of %s: %w", username, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		detail.Reviews, err = s.directory.TailorReviews(gctx, username)
		if err != nil {
			return fmt.Errorf("reviews of %s: %w", username, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, svc := range services {
		if svc.IsActive {
			detail.Services = append(detail.Services, svc)
		}
	}
	return &detail, nil
}

// cacheKey rounds coordinates to about 100m so nearby searches share entries.
func cacheKey(f domain.TailorFilters) string {
	if f.Lat != nil && f.Lng != nil {
		lat, lng := round3(*f.Lat), round3(*f.Lng)
		f.Lat, f.Lng = &lat, &lng
	}
	f.Location = strings.ToLower(strings.TrimSpace(f.Location))
	f.Specialization = strings.ToLower(f.Specialization)
	return marketplace.TailorQuery(f).Encode()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

var _ TailorUseCase = (*TailorService)(nil)
