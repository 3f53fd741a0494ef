package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/spf13/cobra"
)

func newGeocodeCommand(e *env) *cobra.Command {
	var (
		reverse  bool
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "geocode [place]",
		Short: "Resolve a place name to coordinates, or coordinates to a name",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				place *domain.Place
				err   error
			)
			if reverse {
				place, err = e.app.Geocoder.Reverse(cmd.Context(), lat, lng)
			} else {
				query := strings.Join(args, " ")
				if strings.TrimSpace(query) == "" {
					return &domain.ValidationError{Fields: map[string]string{"place": "Tell me which place to look up."}}
				}
				place, err = e.app.Geocoder.Forward(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			if place == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing found.")
				return nil
			}
			return e.print(cmd, place, func(w io.Writer) {
				row(w, "LAT", "LNG", "NAME")
				row(w, place.Lat, place.Lng, place.Name)
			})
		},
	}

	cmd.Flags().BoolVar(&reverse, "reverse", false, "look up --lat/--lng instead of a name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	return cmd
}
