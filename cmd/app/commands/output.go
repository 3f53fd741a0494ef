package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (e *env) print(cmd *cobra.Command, v interface{}, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if e.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func row(w io.Writer, cols ...interface{}) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func when(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006")
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func distance(km *float64) string {
	if km == nil {
		return "-"
	}
	return humanize.FtoaWithDigits(math.Round(*km*10)/10, 1) + " km"
}

func specializations(list []domain.Specialization) string {
	names := make([]string, 0, len(list))
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = domain.SpecializationLabel(s.Slug)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func payment(b domain.Booking) string {
	if b.PaymentStatus.Paid() {
		return "paid"
	}
	return "unpaid"
}
