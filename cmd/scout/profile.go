package main

import (
	"github.com/spf13/cobra"

	"scout/internal/engine"
	"scout/internal/layout"
	"scout/internal/scan"
	"scout/internal/store"
)

var (
	profileHintPath      string
	profileCrossRepo     bool
	profileNoReuse       bool
	profileMinConfidence float64
	profileAmbiguity     float64
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Discover and report the full capability inventory",
	Long: `Run the same pipeline as discover, then report the complete inventory:
every module candidate with its evidence, every endpoint with its source
location, and per-file language and size facts.`,
	Run: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileHintPath, "hints", "", "Hint bundle to apply for this run")
	profileCmd.Flags().BoolVar(&profileCrossRepo, "allow-cross-repo-hints", false,
		"Accept a hint bundle issued for a different repository")
	profileCmd.Flags().BoolVar(&profileNoReuse, "no-reuse", false, "Force a full scan, never reuse the prior graph")
	profileCmd.Flags().Float64Var(&profileMinConfidence, "min-confidence", 0,
		"Calibration gate minimum confidence (0 = config value)")
	profileCmd.Flags().Float64Var(&profileAmbiguity, "ambiguity-threshold", 0,
		"Candidate separation threshold (0 = config value)")
	rootCmd.AddCommand(profileCmd)
}

// profilePayload is the full inventory attached to the capability line.
type profilePayload struct {
	Record    *store.CapabilityRecord `json:"record"`
	Modules   []*layout.Candidate     `json:"modules"`
	Endpoints []scan.Endpoint         `json:"endpoints"`
	Files     []scan.FileFacts        `json:"files"`
}

func runProfile(cmd *cobra.Command, args []string) {
	opts := engineOptions("profile")
	opts.HintPath = profileHintPath
	opts.AllowCrossRepoHint = profileCrossRepo
	opts.NoReuse = profileNoReuse
	if profileMinConfidence > 0 {
		opts.Thresholds.MinConfidence = profileMinConfidence
	}
	if profileAmbiguity > 0 {
		opts.Thresholds.AmbiguityThreshold = profileAmbiguity
	}

	out := engine.Run(opts)

	var payload interface{}
	if out.Record != nil && out.Graph != nil {
		payload = &profilePayload{
			Record:    out.Record,
			Modules:   out.Layout.Candidates,
			Endpoints: out.Graph.Endpoints,
			Files:     out.Graph.Files,
		}
	}
	emitOutcome(newEmitter(), out, payload)
}
