package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/config"
)

var (
	instanceURL string
	token       string
	namespace   string
	jsonOutput  bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "recmig",
	Short: "recmig - dependency-aware record migration",
	Long: `Migrate relational records between two instances of a record service.
Load uploads per-object CSV files in dependency order, translating
reference columns as new ids are assigned. Dump extracts the reference
closure of a set of queries back to CSV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags win over config file and environment
		if !cmd.Flags().Changed("instance-url") && instanceURL == "" {
			instanceURL = config.GetString("instance-url")
		}
		if !cmd.Flags().Changed("token") && token == "" {
			token = config.GetString("token")
		}
		if !cmd.Flags().Changed("namespace") && namespace == "" {
			namespace = config.GetString("namespace")
		}
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("verbose") {
			verbose = config.GetBool("verbose")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&instanceURL, "instance-url", "", "Base URL of the record service instance")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (or RECMIG_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "Default namespace for object and field lookups")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Report progress to stderr")
}

// newClient builds the REST client from the resolved configuration
func newClient() (*client.RESTClient, error) {
	if instanceURL == "" {
		return nil, fmt.Errorf("instance URL required (--instance-url or RECMIG_INSTANCE_URL)")
	}
	if token == "" {
		return nil, fmt.Errorf("access token required (--token or RECMIG_TOKEN)")
	}
	return client.NewREST(instanceURL, token), nil
}

// outputJSON outputs data as pretty-printed JSON
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	for _, arg := range os.Args[1:] {
		if arg == "--version" {
			fmt.Printf("recmig version %s (%s)\n", Version, Build)
			return
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
