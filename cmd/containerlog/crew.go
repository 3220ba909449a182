package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var crewCmd = &cobra.Command{
	Use:   "crew",
	Short: "Manage the crew directory",
}

var crewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crew members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := fromContext(cmd)
		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.close()

		members, err := b.service.ListCrew(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFIRST\tLAST")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.FirstName, m.LastName)
		}
		return w.Flush()
	},
}

var crewAddCmd = &cobra.Command{
	Use:   "add FIRST LAST",
	Short: "Add a crew member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := fromContext(cmd)
		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.close()

		m, err := b.service.AddCrewMember(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s %s (%s)\n", m.FirstName, m.LastName, m.ID)
		return nil
	},
}

func init() {
	crewCmd.AddCommand(crewListCmd, crewAddCmd)
}
