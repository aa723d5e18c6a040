package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scout/internal/contract"
	"scout/internal/federation"
)

var (
	indexKeyword          string
	indexEndpoint         string
	indexLimit            int
	indexIncludeLimitsHit bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Query the federated capability index",
	Long: `Read the cross-repository index built up by past discovery runs.
These commands read local state only and never touch any repository.`,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed repositories, most recent first",
	Run:   runIndexList,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Rank indexed repositories against a keyword or endpoint",
	Run:   runIndexQuery,
}

var indexExplainCmd = &cobra.Command{
	Use:   "explain <fingerprint> <run-id>",
	Short: "Show the full stored record for one run",
	Args:  cobra.ExactArgs(2),
	Run:   runIndexExplain,
}

func init() {
	indexQueryCmd.Flags().StringVar(&indexKeyword, "keyword", "", "Match repo names and discovered keywords")
	indexQueryCmd.Flags().StringVar(&indexEndpoint, "endpoint", "", "Match discovered endpoint paths")
	indexQueryCmd.Flags().IntVar(&indexLimit, "limit", 10, "Maximum results")
	indexQueryCmd.Flags().BoolVar(&indexIncludeLimitsHit, "include-limits-hit", false,
		"Include repos whose latest scan was truncated by budget")
	indexListCmd.Flags().IntVar(&indexLimit, "limit", 10, "Maximum results")

	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexExplainCmd)
	rootCmd.AddCommand(indexCmd)
}

func openFederation(emitter *contract.Emitter) *federation.Index {
	idx, err := federation.Open()
	if err != nil {
		failInternal(emitter, err)
	}
	return idx
}

func runIndexList(cmd *cobra.Command, args []string) {
	emitter := newEmitter()
	idx := openFederation(emitter)

	entries := idx.List(indexLimit)
	_ = emitter.Pointer(contract.KindFederation, idx.Path(), entries)
	_ = emitter.Status(contract.StateSuccess, map[string]int{"results": len(entries)})
	os.Exit(0)
}

func runIndexQuery(cmd *cobra.Command, args []string) {
	emitter := newEmitter()
	idx := openFederation(emitter)

	matches := idx.Query(federation.QueryOptions{
		Keyword:          indexKeyword,
		Endpoint:         indexEndpoint,
		Limit:            indexLimit,
		IncludeLimitsHit: indexIncludeLimitsHit,
	})
	_ = emitter.Pointer(contract.KindFederation, idx.Path(), matches)
	_ = emitter.Status(contract.StateSuccess, map[string]int{"results": len(matches)})
	os.Exit(0)
}

func runIndexExplain(cmd *cobra.Command, args []string) {
	emitter := newEmitter()
	idx := openFederation(emitter)

	record := idx.Explain(args[0], args[1])
	if record == nil {
		failInternal(emitter, fmt.Errorf("no stored run %s for fingerprint %s", args[1], args[0]))
	}
	_ = emitter.Pointer(contract.KindFederation, idx.Path(), record)
	_ = emitter.Status(contract.StateSuccess, nil)
	os.Exit(0)
}
