package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/perfaudit/perfaudit"
)

func getHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		stages string
	)
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List past audit runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			cfg, err := g.config()
			if err != nil {
				return fatal(logger, err)
			}
			svc, closeFn, err := perfaudit.Build(cfg, logger)
			if err != nil {
				return fatal(logger, err)
			}
			defer closeFn()

			if stages != "" {
				return printStages(cmd, svc, stages)
			}

			in := perfaudit.HistoryInput{Limit: limit}
			if len(args) == 1 {
				in.URL = args[0]
			}
			runs, err := svc.History(cmd.Context(), in)
			if err != nil {
				return fatal(logger, err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tSCORE\tLCP\tURL\tERROR")
			for _, r := range runs {
				score, lcp := "-", "-"
				if r.Score != nil {
					score = fmt.Sprintf("%.0f", *r.Score)
				}
				if r.LCP != nil {
					lcp = fmt.Sprintf("%.0fms", *r.LCP)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.RunID,
					r.StartedAt.Format(time.DateTime), r.State, score, lcp, r.URL, r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	cmd.Flags().StringVar(&stages, "stages", "", "show the state transitions of one run instead")
	return cmd
}

func printStages(cmd *cobra.Command, svc *perfaudit.Service, runID string) error {
	st, err := svc.Stages(cmd.Context(), runID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTAGE\tAT\tELAPSED")
	for _, s := range st {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Seq, s.Stage, s.At.Format(time.DateTime), s.Elapsed)
	}
	return tw.Flush()
}
