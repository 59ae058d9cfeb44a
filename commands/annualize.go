package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mempirate/electionjobs/salary"
)

func init() {
	rootCmd.AddCommand(annualizeCmd)
}

var annualizeCmd = &cobra.Command{
	Use:   "annualize <figure> <basis>",
	Short: "Prints the annual equivalent of a pay figure (basis: hourly, biweekly, semi-monthly, monthly, yearly).",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		figure, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "").Replace(args[0]), 64)
		if err != nil {
			return errors.Wrapf(err, "invalid figure %q", args[0])
		}

		annual := salary.Annualize(&figure, salary.ParseBasis(args[1]))
		if annual == nil {
			return errors.Errorf("cannot annualize %s on a %q basis", args[0], args[1])
		}

		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(*annual, 'f', -1, 64))
		return nil
	},
}
