// racectl runs race administration tasks directly against the database.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padraicbc/racetime/config"
	"github.com/padraicbc/racetime/db"
	applog "github.com/padraicbc/racetime/logger"
	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/timing"
)

var (
	timeout  time.Duration
	counters *timing.Counters
	closeDB  func() error
)

var rootCmd = &cobra.Command{
	Use:   "racectl",
	Short: "Administer the race timing database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger, err := applog.New("racectl", cfg.Debug)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		bdb, err := db.Setup(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := db.CreateTables(cmd.Context(), bdb); err != nil {
			_ = bdb.Close()
			return err
		}
		closeDB = bdb.Close
		counters = timing.NewCounters(db.NewStore(bdb), logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeDB != nil {
			return closeDB()
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Timeout for each command")
	rootCmd.AddCommand(raceCmd(), tagsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func raceCmd() *cobra.Command {
	race := &cobra.Command{Use: "race", Short: "Create, reset or delete the race"}

	var place, from, to string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the race, wiping the previous race's data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if to == "" {
				to = from
			}
			r := &models.Race{Place: place, DateFrom: from, DateTo: to}
			if err := counters.CreateRace(ctx, r); err != nil {
				return err
			}
			fmt.Printf("race %d created at %s (%s to %s)\n", r.ID, r.Place, r.DateFrom, r.DateTo)
			return nil
		},
	}
	create.Flags().StringVar(&place, "place", "", "Race location")
	create.Flags().StringVar(&from, "from", "", "First race day (YYYY-MM-DD)")
	create.Flags().StringVar(&to, "to", "", "Last race day (YYYY-MM-DD), defaults to --from")
	_ = create.MarkFlagRequired("place")
	_ = create.MarkFlagRequired("from")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete all results, runners, waves and times and free every tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := counters.Reset(ctx); err != nil {
				return err
			}
			fmt.Println("race data reset")
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete the race record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := counters.DeleteRace(ctx); err != nil {
				return err
			}
			fmt.Println("race deleted")
			return nil
		},
	}

	race.AddCommand(create, reset, del)
	return race
}

func tagsCmd() *cobra.Command {
	tags := &cobra.Command{Use: "tags", Short: "Manage timing tags"}

	var tr timing.TagRange
	addRangeFlags := func(c *cobra.Command) {
		c.Flags().IntVar(&tr.From, "from", 0, "First tag number")
		c.Flags().IntVar(&tr.To, "to", 0, "Last tag number, defaults to --from")
		c.Flags().StringVar(&tr.Color, "color", "", "Tag color")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("color")
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a range of unassigned tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			created, err := counters.CreateTags(ctx, tr)
			if err != nil {
				return err
			}
			fmt.Printf("%d tags created\n", len(created))
			return nil
		},
	}
	addRangeFlags(add)

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Delete a range of tags and unbind them from runners",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			n, err := counters.RemoveTags(ctx, tr)
			if err != nil {
				return err
			}
			fmt.Printf("%d tags deleted\n", n)
			return nil
		},
	}
	addRangeFlags(remove)

	assign := &cobra.Command{
		Use:   "assign",
		Short: "Bind free tags to untagged runners of chrono waves",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			n, err := counters.AssignTags(ctx)
			if err != nil {
				return err
			}
			zap.L().Debug("tags assigned", zap.Int("count", n))
			fmt.Printf("%d tags assigned\n", n)
			return nil
		},
	}

	tags.AddCommand(add, remove, assign)
	return tags
}
