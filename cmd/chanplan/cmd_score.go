package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chanplan/internal/config"
	"chanplan/internal/log"
	"chanplan/internal/models"
	"chanplan/internal/scoring"
)

var scoreFlags struct {
	profileID int64
	output    string
}

var scoreCmd = &cobra.Command{
	Use:   "score [playlist.json]",
	Short: "Evaluate an external playlist against a profile and emit CSV",
	Long: `score reads a playlist document from a file or stdin and writes the
per-program, per-criterion breakdown as CSV. The document is either a
full score request {"profileId": 3, "items": [...]} or a bare items
array combined with --profile.

Examples:
  chanplan score playlist.json
  curl -s http://tv/lineup | chanplan score --profile 3 -o audit.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().Int64Var(&scoreFlags.profileID, "profile", 0, "profile id; overrides the document's profileId")
	scoreCmd.Flags().StringVarP(&scoreFlags.output, "output", "o", "", "write CSV here instead of stdout")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: "warn", Console: true})

	data, err := readPlaylist(args)
	if err != nil {
		return err
	}

	var req models.ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		// Bare items array, profile supplied by flag.
		var items []models.ScoreItem
		if err2 := json.Unmarshal(data, &items); err2 != nil {
			return fmt.Errorf("parsing playlist: %w", err)
		}
		req.Items = items
	}
	if scoreFlags.profileID > 0 {
		req.ProfileID = scoreFlags.profileID
	}
	if err := req.Validate(); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.GetProfile(req.ProfileID)
	if err != nil {
		return err
	}

	result := scoring.NewEngine().EvaluatePlaylist(profile, req.Items, cfg.Location())

	out := io.Writer(os.Stdout)
	if scoreFlags.output != "" {
		f, err := os.Create(scoreFlags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := scoring.WriteCSV(out, result.Programs); err != nil {
		return err
	}
	if scoreFlags.output != "" {
		fmt.Fprintf(os.Stderr, "%d programs scored, average %.1f\n", len(result.Programs), result.AverageScore)
	}
	return nil
}

func readPlaylist(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
