package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured season into the local cache",
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	client, c, err := a.client()
	if err != nil {
		return err
	}
	defer c.Close()

	season, err := client.LoadSeason(ctx)
	if err != nil {
		return err
	}
	keys, err := c.Keys("events/")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "competition %d season %d: %d matches, %d events, %d event files cached in %s\n",
		season.CompetitionID, season.SeasonID, len(season.Matches), season.EventCount(), len(keys), a.cfg.Data.CacheDir)
	return nil
}
