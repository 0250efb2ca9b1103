package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recmig/recmig"
	"github.com/recmig/recmig/internal/debug"
	"github.com/recmig/recmig/internal/types"
)

var (
	queriesFile  string
	outDir       string
	maxFetchSize int
	dumpWithMap  bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Extract the reference closure of a set of queries as CSV",
	Long: `Fetch the records matched by the seed queries, then follow reference
edges through the related queries until the closure stops growing.
One CSV file per query is written to the output directory.`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&queriesFile, "queries", "q", "", "YAML file of dump queries (required)")
	dumpCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the CSV files")
	dumpCmd.Flags().IntVar(&maxFetchSize, "max-fetch-size", 0, "Cap on records fetched per query")
	dumpCmd.Flags().BoolVar(&dumpWithMap, "restore-ids", false, "Rewrite ids back to source-instance ids using the state database")
	_ = dumpCmd.MarkFlagRequired("queries")
	rootCmd.AddCommand(dumpCmd)
}

// queriesDoc is the on-disk shape of a --queries file
type queriesDoc struct {
	Queries []types.DumpQuery `yaml:"queries"`
}

func readQueriesFile(path string) ([]types.DumpQuery, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries file: %w", err)
	}
	var doc queriesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing queries file %s: %w", path, err)
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("queries file %s: no queries", path)
	}
	for i := range doc.Queries {
		if err := doc.Queries[i].Validate(); err != nil {
			return nil, fmt.Errorf("queries file %s: %w", path, err)
		}
	}
	return doc.Queries, nil
}

// outputPaths assigns one file per query, numbering duplicates so two
// queries over the same object do not clobber each other
func outputPaths(dir string, queries []types.DumpQuery) []string {
	counts := make(map[string]int)
	for i := range queries {
		counts[strings.ToLower(queries[i].Object)]++
	}
	seen := make(map[string]int)
	paths := make([]string, len(queries))
	for i := range queries {
		key := strings.ToLower(queries[i].Object)
		name := queries[i].Object + ".csv"
		if counts[key] > 1 {
			seen[key]++
			name = fmt.Sprintf("%s-%d.csv", queries[i].Object, seen[key])
		}
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

func runDump(cmd *cobra.Command, args []string) error {
	cli, err := newClient()
	if err != nil {
		return err
	}

	queries, err := readQueriesFile(queriesFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	debug.Logf("dump run %s: %d queries", runID, len(queries))

	var idMap *types.IDMap
	var store interface {
		Close() error
	}
	if dumpWithMap {
		s, err := openState()
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("--restore-ids needs a state database (conflicts with --no-state)")
		}
		store = s
		if idMap, err = s.IDMap(ctx); err != nil {
			s.Close()
			return err
		}
	}
	if store != nil {
		defer store.Close()
	}

	opts := &recmig.DumpOptions{
		DefaultNamespace: namespace,
		MaxFetchSize:     maxFetchSize,
		IDMap:            idMap,
		RunID:            runID,
	}
	if verbose {
		opts.ReportProgress = func(p recmig.DumpProgress) {
			fmt.Fprintf(os.Stderr, "fetched %d records\n", p.FetchedCount)
		}
	}

	docs, err := recmig.DumpAsCSV(ctx, cli, cli, queries, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	paths := outputPaths(outDir, queries)
	for i, doc := range docs {
		if err := os.WriteFile(paths[i], []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", paths[i], err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "wrote %s\n", paths[i])
		}
	}
	if jsonOutput {
		outputJSON(map[string]any{"runId": runID, "files": paths})
	} else {
		fmt.Printf("wrote %d files to %s\n", len(docs), outDir)
	}
	return nil
}
