package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/validate"
	"github.com/spf13/cobra"
)

func newServicesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"s"},
		Short:   "Manage the services you offer as a tailor",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your services",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				services, err := e.app.API.MyServices(cmd.Context())
				if err != nil {
					return err
				}
				return e.print(cmd, services, func(w io.Writer) {
					row(w, "ID", "NAME", "PRICE", "TURNAROUND", "ACTIVE", "IMAGES")
					for _, s := range services {
						row(w, s.ID, s.Name, s.Price, turnaround(s), s.IsActive, len(s.Images))
					}
				})
			},
		},
		newServiceCreateCommand(e),
		newServiceUpdateCommand(e),
		&cobra.Command{
			Use:   "delete <service-id>",
			Short: "Delete a service",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := e.app.API.DeleteService(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service #%d deleted.\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add-image <service-id> <file>",
			Short: "Attach a photo to a service",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()

				img, err := e.app.API.UploadServiceImage(cmd.Context(), id, filepath.Base(args[1]), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Image #%d uploaded: %s\n", img.ID, img.URL)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove-image <service-id> <image-id>",
			Short: "Remove a photo from a service",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				imageID, err := parseID(args[1])
				if err != nil {
					return err
				}
				if err := e.app.API.DeleteServiceImage(cmd.Context(), id, imageID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Image #%d removed.\n", imageID)
				return nil
			},
		},
	)
	return cmd
}

func newServiceCreateCommand(e *env) *cobra.Command {
	var in domain.ServiceInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Offer a new service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(&in); err != nil {
				return err
			}
			svc, err := e.app.API.CreateService(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service #%d %s saved.\n", svc.ID, svc.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "service name")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&in.Price, "price", "p", "", "price, e.g. 450.00")
	cmd.Flags().IntVar(&in.DurationDays, "days", 0, "turnaround in days")
	cmd.Flags().IntVar(&in.DurationMinutes, "minutes", 0, "turnaround in minutes")
	cmd.Flags().BoolVar(&in.IsActive, "active", true, "list the service for customers")
	return cmd
}

// newServiceUpdateCommand sends only the flags that were given.
func newServiceUpdateCommand(e *env) *cobra.Command {
	var (
		name, description, price string
		days, minutes            int
		active                   bool
	)

	cmd := &cobra.Command{
		Use:   "update <service-id>",
		Short: "Change a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var in domain.ServiceUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("price") {
				in.Price = &price
			}
			if flags.Changed("days") {
				in.DurationDays = &days
			}
			if flags.Changed("minutes") {
				in.DurationMinutes = &minutes
			}
			if flags.Changed("active") {
				in.IsActive = &active
			}
			if in.Empty() {
				return &domain.ValidationError{Fields: map[string]string{"service": "Nothing to update."}}
			}
			if err := validate.Struct(&in); err != nil {
				return err
			}

			svc, err := e.app.API.UpdateService(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service #%d %s saved.\n", svc.ID, svc.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "service name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description, empty to clear")
	cmd.Flags().StringVarP(&price, "price", "p", "", "price, e.g. 450.00")
	cmd.Flags().IntVar(&days, "days", 0, "turnaround in days")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "turnaround in minutes")
	cmd.Flags().BoolVar(&active, "active", true, "list the service for customers")
	return cmd
}
