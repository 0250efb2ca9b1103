package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recmig/recmig"
	"github.com/recmig/recmig/internal/config"
	"github.com/recmig/recmig/internal/debug"
	"github.com/recmig/recmig/internal/state"
	"github.com/recmig/recmig/internal/types"
)

var (
	mappingFile string
	statePath   string
	noState     bool
	targetIDs   []string
)

var loadCmd = &cobra.Command{
	Use:   "load [files...]",
	Short: "Upload CSV datasets in dependency order",
	Long: `Upload one CSV file per object. The object name is taken from the
file basename (account.csv loads Account). Rows referencing records
that upload later are retried automatically; rows whose references
never resolve are reported blocked.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "YAML file mapping rows onto pre-existing target records")
	loadCmd.Flags().StringVar(&statePath, "state", "", "State database for id-map persistence (default: per config)")
	loadCmd.Flags().BoolVar(&noState, "no-state", false, "Do not read or write the state database")
	loadCmd.Flags().StringArrayVarP(&targetIDs, "target", "t", nil, "Restrict the upload to this source id and its dependencies (repeatable)")
	rootCmd.AddCommand(loadCmd)
}

// mappingDoc is the on-disk shape of a --mapping file
type mappingDoc struct {
	Policies []types.MappingPolicy `yaml:"policies"`
}

func readMappingFile(path string) ([]types.MappingPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var doc mappingDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing mapping file %s: %w", path, err)
	}
	for i := range doc.Policies {
		if err := doc.Policies[i].Validate(); err != nil {
			return nil, fmt.Errorf("mapping file %s: %w", path, err)
		}
	}
	return doc.Policies, nil
}

// objectFromPath derives the object name from a CSV file path
func objectFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func openState() (*state.Store, error) {
	if noState {
		return nil, nil
	}
	path := statePath
	if path == "" {
		path = config.StateDBPath()
	}
	return state.Open(path)
}

func runLoad(cmd *cobra.Command, args []string) error {
	cli, err := newClient()
	if err != nil {
		return err
	}

	inputs := make([]recmig.LoadInput, 0, len(args))
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		inputs = append(inputs, recmig.LoadInput{Object: objectFromPath(path), CSV: raw})
	}

	var policies []types.MappingPolicy
	if mappingFile != "" {
		if policies, err = readMappingFile(mappingFile); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	debug.Logf("load run %s: %d files, %d policies", runID, len(inputs), len(policies))

	store, err := openState()
	if err != nil {
		return err
	}
	idMap := types.NewIDMap()
	if store != nil {
		defer store.Close()
		if idMap, err = store.IDMap(ctx); err != nil {
			return err
		}
		if err := store.BeginRun(ctx, runID, "load"); err != nil {
			return err
		}
	}

	opts := &recmig.LoadOptions{
		MappingPolicies:  policies,
		DefaultNamespace: namespace,
		IDMap:            idMap,
		TargetIDs:        targetIDs,
		MaxFetchSize:     config.GetInt("max-fetch-size"),
		RunID:            runID,
	}
	if verbose {
		opts.ReportProgress = func(p recmig.LoadProgress) {
			fmt.Fprintf(os.Stderr, "pass done: %d/%d uploaded, %d failed\n",
				p.SuccessCount, p.TotalCount, p.FailureCount)
		}
	}

	status, err := recmig.LoadCSVData(ctx, cli, cli, inputs, opts)
	if status != nil && store != nil {
		// Keep whatever ids the run earned, even on a cancelled run
		if serr := store.SaveIDMap(ctx, runID, status.IDMap); serr != nil && err == nil {
			err = serr
		}
		if ferr := store.FinishRun(ctx, runID, status); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(status)
		return nil
	}
	printLoadSummary(status)
	return nil
}

func printLoadSummary(status *recmig.UploadStatus) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s %d of %d records uploaded\n", green("✓"), len(status.Successes), status.TotalCount)
	for _, f := range status.Failures {
		fmt.Printf("%s %s %s: %s\n", red("✗"), f.Object, f.OrigID, strings.Join(f.Errors, "; "))
	}
	for _, b := range status.Blocked {
		fmt.Printf("%s %s %s blocked by %s=%s\n", yellow("!"), b.Object, b.OrigID, b.BlockingField, b.BlockingID)
	}
}
