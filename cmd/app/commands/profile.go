package commands

import (
	"fmt"
	"io"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/marketplace"
	"github.com/Domenick1991/tailorbook/internal/validate"
	"github.com/spf13/cobra"
)

func newProfileCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your tailor profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.app.API.MyProfile(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd, p, func(w io.Writer) {
				row(w, "USERNAME", "EXPERIENCE", "RATING", "SPECIALIZATIONS")
				row(w, p.Username, fmt.Sprintf("%d yrs", p.YearsExperience), p.AvgRating, specializations(p.Specializations))
				if p.Bio != "" {
					row(w)
					row(w, p.Bio)
				}
			})
		},
	}

	cmd.AddCommand(newProfileUpdateCommand(e), newProfileLocationCommand(e))
	return cmd
}

func newProfileUpdateCommand(e *env) *cobra.Command {
	var (
		bio   string
		years int
		specs []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your bio, experience or specializations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in domain.TailorProfileUpdate
			if cmd.Flags().Changed("bio") {
				in.Bio = &bio
			}
			if cmd.Flags().Changed("years") {
				in.YearsExperience = &years
			}
			for _, s := range specs {
				slug, ok := domain.ResolveSpecialization(s)
				if !ok {
					return &domain.ValidationError{Fields: map[string]string{"specializations": fmt.Sprintf("Unknown specialization %q.", s)}}
				}
				in.Specializations = append(in.Specializations, slug)
			}
			if err := validate.Struct(&in); err != nil {
				return err
			}

			p, err := e.app.API.UpdateMyProfile(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile of %s updated.\n", p.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&bio, "bio", "", "short introduction")
	cmd.Flags().IntVar(&years, "years", 0, "years of experience")
	cmd.Flags().StringSliceVar(&specs, "specialization", nil, "specialization slug or name, repeatable")
	return cmd
}

// newProfileLocationCommand stores where the user is, the origin for distance
// sorted searches.
func newProfileLocationCommand(e *env) *cobra.Command {
	var (
		lat, lng float64
		place    string
	)

	cmd := &cobra.Command{
		Use:   "location",
		Short: "Save your location, by coordinates or by place name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			switch {
			case place != "":
				found, err := e.app.Geocoder.Forward(cmd.Context(), place)
				if err != nil {
					return err
				}
				if found == nil {
					return &domain.ValidationError{Fields: map[string]string{"place": fmt.Sprintf("Could not find %q.", place)}}
				}
				lat, lng = found.Lat, found.Lng
			case !flags.Changed("lat") || !flags.Changed("lng"):
				return &domain.ValidationError{Fields: map[string]string{"location": "Give --place, or --lat and --lng together."}}
			}

			in := marketplace.UserUpdate{Latitude: &lat, Longitude: &lng}
			if err := validate.Struct(&in); err != nil {
				return err
			}
			u, err := e.app.API.UpdateMe(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Location of %s set to %.5f, %.5f.\n", u.Username, lat, lng)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().StringVar(&place, "place", "", "place name to geocode")
	return cmd
}
