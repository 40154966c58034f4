package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func parseYear(arg string) (int, error) {
	year, err := strconv.Atoi(arg)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", arg)
	}
	return year, nil
}

func newYearsCmd(open opener, actor *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "years",
		Short: "Manage fiscal years",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-current <year>",
		Short: "Make the given fiscal year the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			b, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer b.close()
			fy, err := b.years.SetCurrentByYear(cmd.Context(), *actor, year)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), fy)
		},
	})
	cmd.AddCommand(newCopyForwardCmd(open, actor))
	return cmd
}

func newCopyForwardCmd(open opener, actor *string) *cobra.Command {
	var (
		links bool
		async bool
	)
	cmd := &cobra.Command{
		Use:   "copy-forward <year>",
		Short: "Copy the prior year's activities into the given year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			b, err := open(cmd.Context(), async)
			if err != nil {
				return err
			}
			defer b.close()
			if !async {
				result, err := b.years.CopyForwardByYear(cmd.Context(), *actor, year, links)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if b.queue == nil {
				return errors.New("job queue not configured")
			}
			yearID, err := b.years.ResolveYear(cmd.Context(), year)
			if err != nil {
				return err
			}
			taskID, err := b.queue.EnqueueCopyForward(cmd.Context(), *actor, yearID, links)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"task_id": taskID})
		},
	}
	cmd.Flags().BoolVar(&links, "links", false, "Also copy client links")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue on the background worker instead of running inline")
	return cmd
}
