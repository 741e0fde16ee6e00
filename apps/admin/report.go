package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/trezcool/eicr/core/inspection"
)

// report prints the progress of an inspection.
func (cli *commandLine) report(id string) error {
	ctx := context.Background()
	insp, err := cli.inspSvc.Get(ctx, id)
	if err != nil {
		return err
	}
	stats, err := cli.inspSvc.Stats(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Inspection %s (%s)\n", insp.Reference, insp.ID)
	fmt.Fprintf(cli.out, "  client: %s\n", insp.ClientName)
	fmt.Fprintf(cli.out, "  progress: %d/%d (%d%%)\n", stats.CompletedItems, stats.TotalItems, stats.ProgressPercent)
	fmt.Fprintf(cli.out, "  critical: %d, satisfactory: %d\n", stats.CriticalItems, stats.SatisfactoryItems)

	outcomes := make([]string, 0, len(stats.Counts))
	for o := range stats.Counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(cli.out, "  %s: %d\n", o, stats.Counts[inspection.Outcome(o)])
	}

	fmt.Fprintln(cli.out, "Sections:")
	for _, sec := range stats.Sections {
		fmt.Fprintf(cli.out, "  %s: %d/%d (%d%%)\n", sec.Title, sec.Completed, sec.Total, sec.Percent)
	}

	if insp.IsCompleted() {
		fmt.Fprintf(cli.out, "Completed: %s\n", insp.OverallAssessment)
		return nil
	}
	suggested, err := cli.inspSvc.SuggestedAssessment(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Suggested assessment: %s\n", suggested)
	return nil
}
