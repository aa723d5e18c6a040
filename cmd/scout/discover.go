package main

import (
	"time"

	"github.com/spf13/cobra"

	"scout/internal/engine"
)

var (
	discoverHintPath      string
	discoverCrossRepo     bool
	discoverNoReuse       bool
	discoverMaxFiles      int
	discoverMaxSeconds    int
	discoverWorkers       int
	discoverMinConfidence float64
	discoverAmbiguity     float64
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover module layout and capabilities of a repository",
	Long: `Run the full discovery pipeline against the target repository: resolve
module candidates, scan for endpoints and resources, calibrate confidence,
and persist the capability record. The target is never written to.`,
	Run: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverHintPath, "hints", "", "Hint bundle to apply for this run")
	discoverCmd.Flags().BoolVar(&discoverCrossRepo, "allow-cross-repo-hints", false,
		"Accept a hint bundle issued for a different repository")
	discoverCmd.Flags().BoolVar(&discoverNoReuse, "no-reuse", false, "Force a full scan, never reuse the prior graph")
	discoverCmd.Flags().IntVar(&discoverMaxFiles, "max-files", 0, "Scan file budget override (0 = config value)")
	discoverCmd.Flags().IntVar(&discoverMaxSeconds, "max-seconds", 0, "Scan wall-clock budget override (0 = config value)")
	discoverCmd.Flags().IntVar(&discoverWorkers, "workers", 0, "Parallel extraction workers (0 = config value)")
	discoverCmd.Flags().Float64Var(&discoverMinConfidence, "min-confidence", 0,
		"Calibration gate minimum confidence (0 = config value)")
	discoverCmd.Flags().Float64Var(&discoverAmbiguity, "ambiguity-threshold", 0,
		"Candidate separation threshold (0 = config value)")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	opts := engineOptions("discover")
	opts.HintPath = discoverHintPath
	opts.AllowCrossRepoHint = discoverCrossRepo
	opts.NoReuse = discoverNoReuse
	if discoverWorkers > 0 {
		opts.Workers = discoverWorkers
	}
	if discoverMaxFiles > 0 {
		opts.Budget.MaxFiles = discoverMaxFiles
	}
	if discoverMaxSeconds > 0 {
		opts.Budget.MaxDuration = time.Duration(discoverMaxSeconds) * time.Second
	}
	if discoverMinConfidence > 0 {
		opts.Thresholds.MinConfidence = discoverMinConfidence
	}
	if discoverAmbiguity > 0 {
		opts.Thresholds.AmbiguityThreshold = discoverAmbiguity
	}

	out := engine.Run(opts)
	emitOutcome(newEmitter(), out, nil)
}
