package commands

import (
	"fmt"
	"io"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/spf13/cobra"
)

func newTailorsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tailors",
		Aliases: []string{"t"},
		Short:   "Find tailors near you",
	}

	cmd.AddCommand(
		newTailorSearchCommand(e),
		newTailorShowCommand(e),
		&cobra.Command{
			Use:   "specializations",
			Short: "List the specializations you can search for",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.print(cmd, domain.Specializations, func(w io.Writer) {
					row(w, "SLUG", "NAME")
					for _, s := range domain.Specializations {
						row(w, s.Slug, s.Name)
					}
				})
			},
		},
	)
	return cmd
}

func newTailorSearchCommand(e *env) *cobra.Command {
	var (
		f        domain.TailorFilters
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search tailors by place, coordinates or specialization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("lat") {
				f.Lat = &lat
			}
			if cmd.Flags().Changed("lng") {
				f.Lng = &lng
			}
			result, err := e.app.Tailors.Search(cmd.Context(), f)
			if err != nil {
				return err
			}
			return e.print(cmd, result, func(w io.Writer) {
				if result.Origin != nil {
					row(w, "Near "+result.Origin.Name)
				}
				if len(result.Tailors) == 0 {
					row(w, "No tailors found.")
					return
				}
				row(w, "USERNAME", "RATING", "REVIEWS", "EXPERIENCE", "DISTANCE", "SPECIALIZATIONS")
				for _, t := range result.Tailors {
					row(w, t.Username, t.AvgRating, t.TotalReviews, fmt.Sprintf("%d yrs", t.YearsExperience), distance(t.DistanceKM), specializations(t.Specializations))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&f.Location, "location", "l", "", "place name, geocoded when possible")
	cmd.Flags().StringVarP(&f.Specialization, "specialization", "s", "", "specialization slug or name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().Float64VarP(&f.RadiusKM, "radius", "r", 0, "search radius in km")
	return cmd
}

func newTailorShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a tailor's profile, services and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := e.app.Tailors.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := detail.Profile
			return e.print(cmd, detail, func(w io.Writer) {
				row(w, p.Username, fmt.Sprintf("%s stars from %d reviews", p.AvgRating, p.TotalReviews), fmt.Sprintf("%d yrs", p.YearsExperience))
				if p.Bio != "" {
					row(w, p.Bio)
				}
				row(w, "Specializations:", specializations(p.Specializations))
				row(w)
				row(w, "SERVICE", "NAME", "PRICE", "TURNAROUND")
				for _, s := range detail.Services {
					row(w, s.ID, s.Name, s.Price, turnaround(s))
				}
				row(w)
				row(w, "RATING", "BY", "COMMENT", "WHEN")
				for _, r := range detail.Reviews {
					row(w, r.Rating, r.CustomerUsername, r.Comment, ago(r.CreatedAt))
				}
			})
		},
	}
}

func turnaround(s domain.Service) string {
	switch {
	case s.DurationDays > 0:
		return fmt.Sprintf("%d days", s.DurationDays)
	case s.DurationMinutes > 0:
		return fmt.Sprintf("%d min", s.DurationMinutes)
	}
	return "-"
}
