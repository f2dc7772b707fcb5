// Command chanplan generates and evaluates programming schedules for
// virtual TV channels. The default command runs the HTTP service;
// generate and score work one-shot against the database directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// appVersion is stamped by release builds via -ldflags. The "dev"
// default keeps unstamped builds off the release feed.
var appVersion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chanplan",
	Short: "Programming schedule generator for virtual TV channels",
	Long: `chanplan assembles 24-hour+ playlists from a media library and scores
them block by block against a user-authored profile: time blocks with
per-block criteria, mandatory/forbidden/preferred rules, and weighted
scoring across nine criteria.

Run without arguments to start the HTTP service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chanplan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("chanplan " + appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
