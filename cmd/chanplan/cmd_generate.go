package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chanplan/internal/cache"
	"chanplan/internal/catalog"
	"chanplan/internal/config"
	"chanplan/internal/generator"
	"chanplan/internal/log"
	"chanplan/internal/models"
	"chanplan/internal/units"
)

var genFlags struct {
	profileID  int64
	channelID  int64
	iterations int
	randomness float64
	seed       int64
	days       int
	start      string
	cacheMode  string
	replace    bool
	improve    bool
	save       bool
	jsonOut    bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one generation and print the resulting schedule",
	Long: `generate runs the schedule generator once against the local database
and prints the winning lineup. Nothing is persisted unless --save is set.

Examples:
  chanplan generate --profile 3
  chanplan generate --profile 3 --channel 1 --days 2 --seed 42 --save
  chanplan generate --profile 3 --iterations 20 --improve --replace-forbidden`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().Int64Var(&genFlags.profileID, "profile", 0, "profile id (required)")
	generateCmd.Flags().Int64Var(&genFlags.channelID, "channel", 0, "channel id; start times use its timezone")
	generateCmd.Flags().IntVar(&genFlags.iterations, "iterations", models.DefaultIterations, "candidate schedules to assemble")
	generateCmd.Flags().Float64Var(&genFlags.randomness, "randomness", models.DefaultRandomness, "selection randomness in [0,1]; 0 is fully greedy")
	generateCmd.Flags().Int64Var(&genFlags.seed, "seed", 0, "RNG seed; 0 picks one")
	generateCmd.Flags().IntVar(&genFlags.days, "days", 1, "schedule length in days")
	generateCmd.Flags().StringVar(&genFlags.start, "start", "", "start datetime, e.g. 2025-01-10T22:00 (default now)")
	generateCmd.Flags().StringVar(&genFlags.cacheMode, "cache-mode", string(models.CacheModeCacheOnly),
		"metadata source: none|plex_only|tmdb_only|cache_only|full|enrich_cache")
	generateCmd.Flags().BoolVar(&genFlags.replace, "replace-forbidden", false, "swap rule-violating programs after generation")
	generateCmd.Flags().BoolVar(&genFlags.improve, "improve", false, "swap in better programs from other iterations")
	generateCmd.Flags().BoolVar(&genFlags.save, "save", false, "persist the result (requires --channel)")
	generateCmd.Flags().BoolVar(&genFlags.jsonOut, "json", false, "print the full result as JSON")

	_ = generateCmd.MarkFlagRequired("profile")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Console: true})

	if genFlags.save && genFlags.channelID == 0 {
		return fmt.Errorf("--save requires --channel")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.GetProfile(genFlags.profileID)
	if err != nil {
		return err
	}

	loc := cfg.Location()
	var channel *models.Channel
	if genFlags.channelID > 0 {
		if channel, err = st.GetChannel(genFlags.channelID); err != nil {
			return err
		}
		loc = channel.Location()
	}

	req := models.ProgrammingRequest{
		ChannelID:        genFlags.channelID,
		ProfileID:        genFlags.profileID,
		Iterations:       genFlags.iterations,
		Randomness:       &genFlags.randomness,
		CacheMode:        models.CacheMode(genFlags.cacheMode),
		DurationDays:     genFlags.days,
		StartDatetime:    genFlags.start,
		Seed:             genFlags.seed,
		ReplaceForbidden: genFlags.replace,
		ImproveBest:      genFlags.improve,
		PreviewOnly:      !genFlags.save,
	}
	if err := req.Validate(); err != nil {
		return err
	}
	start, err := req.StartTime(loc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := catalog.NewBuilder(st, storedEnricher(st, cache.NewNoop())).BuildPool(ctx, profile, req.CacheMode)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return fmt.Errorf("no content for profile %q; sync a media server first", profile.Name)
	}

	result, err := generator.New().Run(ctx, generator.Params{
		Profile:          profile,
		Pool:             pool,
		Start:            start,
		DurationHours:    req.DurationHours(),
		Iterations:       req.Iterations,
		Randomness:       *req.Randomness,
		Seed:             req.Seed,
		ReplaceForbidden: req.ReplaceForbidden,
		ImproveBest:      req.ImproveBest,
		Location:         loc,
		OnProgress: func(p generator.Progress) {
			if p.TotalIterations > 0 {
				fmt.Fprintf(os.Stderr, "\riteration %d/%d  best %.1f", p.Iteration, p.TotalIterations, p.BestScore)
			}
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)

	if genFlags.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResultSummary(os.Stdout, result)

	if genFlags.save {
		stored, err := st.SaveResult(channel.ID, profile.ID, result)
		if err != nil {
			return err
		}
		fmt.Printf("saved result %d\n", stored.ID)
	}
	return nil
}

// printResultSummary renders the lineup as a table plus totals.
func printResultSummary(w io.Writer, result *models.ProgrammingResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tSTART\tBLOCK\tTITLE\tMIN\tSCORE")
	for i := range result.Programs {
		p := &result.Programs[i]
		title := p.Content.Title
		if p.IsReplacement {
			title += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0f\t%.1f\n",
			p.Position,
			p.StartTime.Format("Mon 15:04"),
			p.BlockName,
			title,
			p.DurationMinutes(),
			p.TotalScore(),
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d programs over %s, total %.1f, average %.1f (iteration %d, seed %d)\n",
		len(result.Programs), units.FormatRuntime(result.TotalDurationMinutes()),
		result.TotalScore, result.AverageScore, result.Iteration, result.Seed)
	if result.ForbiddenCount > 0 {
		fmt.Fprintf(w, "%d programs still violate forbidden rules\n", result.ForbiddenCount)
	}
	if result.ReplacedCount > 0 || result.ImprovedCount > 0 {
		fmt.Fprintf(w, "replaced %d, improved %d (* marks replacements)\n",
			result.ReplacedCount, result.ImprovedCount)
	}
}
