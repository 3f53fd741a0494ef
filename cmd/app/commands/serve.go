package commands

import (
	"fmt"

	"github.com/Domenick1991/tailorbook/internal/bootstrap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServePaymentsCommand(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-payments",
		Short: "Receive checkout redirects and confirm payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = e.app.Config.Payment.CallbackAddress
			}
			if !e.app.Config.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			router := bootstrap.NewPaymentRouter(e.app.Bookings, e.app.Log.Named("payments"))
			fmt.Fprintf(cmd.OutOrStdout(), "Listening for payment callbacks on http://%s/payment/success\n", addr)
			return bootstrap.Run(cmd.Context(), addr, router)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default payment.callback_address)")
	return cmd
}
