package domain

import "time"

type TailorProfile struct {
	UserID          int64            `json:"user_id"`
	Username        string           `json:"username"`
	Bio             string           `json:"bio"`
	YearsExperience int              `json:"years_experience"`
	AvgRating       string           `json:"avg_rating"`
	TotalReviews    int              `json:"total_reviews"`
	Specializations []Specialization `json:"specializations"`
	DistanceKM      *float64         `json:"distance_km,omitempty"`
	MatchedService  *Service         `json:"matched_service,omitempty"`
}

type TailorProfileUpdate struct {
	Bio             *string  `json:"bio,omitempty"`
	YearsExperience *int     `json:"years_experience,omitempty" validate:"omitempty,gte=0"`
	Specializations []string `json:"specializations,omitempty"`
}

type Service struct {
	ID              int64   `json:"id"`
	TailorUsername  string  `json:"tailor_username,omitempty"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           string  `json:"price"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	DurationDays    int     `json:"duration_days,omitempty"`
	IsActive        bool    `json:"is_active"`
	Images          []Image `json:"images,omitempty"`
}

// Turnaround is how long the tailor needs once the garment is picked up.
func (s Service) Turnaround() time.Duration {
	if s.DurationDays > 0 {
		return time.Duration(s.DurationDays) * 24 * time.Hour
	}
	return time.Duration(s.DurationMinutes) * time.Minute
}

type ServiceInput struct {
	Name            string `json:"name" validate:"required,max=150"`
	Description     string `json:"description,omitempty"`
	Price           string `json:"price" validate:"required,numeric"`
	DurationMinutes int    `json:"duration_minutes,omitempty" validate:"gte=0"`
	DurationDays    int    `json:"duration_days,omitempty" validate:"gte=0"`
	IsActive        bool   `json:"is_active"`
}

// ServiceUpdate is a partial change; nil fields are left as they are.
type ServiceUpdate struct {
	Name            *string `json:"name,omitempty" validate:"omitnil,min=1,max=150"`
	Description     *string `json:"description,omitempty"`
	Price           *string `json:"price,omitempty" validate:"omitnil,numeric"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitnil,gte=0"`
	DurationDays    *int    `json:"duration_days,omitempty" validate:"omitnil,gte=0"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

func (u ServiceUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil &&
		u.DurationMinutes == nil && u.DurationDays == nil && u.IsActive == nil
}

type Review struct {
	ID               int64     `json:"id"`
	BookingID        int64     `json:"booking"`
	CustomerUsername string    `json:"customer_username"`
	TailorUsername   string    `json:"tailor_username"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
	Images           []Image   `json:"images,omitempty"`
}

type ReviewInput struct {
	BookingID int64  `json:"booking" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment"`
}

type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"image"`
}

type TailorFilters struct {
	Location       string
	Specialization string
	Lat            *float64
	Lng            *float64
	RadiusKM       float64
}
