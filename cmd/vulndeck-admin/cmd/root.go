package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL  string
	flagContext string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vulndeck-admin",
	Short: "VulnDeck administration CLI",
	Long: `vulndeck-admin is a kubectl-style CLI for managing a VulnDeck instance.

It provides commands to list and inspect findings, drive lifecycle
transitions, manage templates, import scan reports, and run database
migrations.

Use "vulndeck-admin config set-context" to configure your connection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Override API URL (env: VULNDECK_API_URL)")
	rootCmd.PersistentFlags().StringVarP(&flagContext, "context", "c", "", "Use specific context (env: VULNDECK_CONTEXT)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, wide, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serverInfoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(findingCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("VULNDECK_API_URL")
	}

	if flagAPIURL == "" {
		flagAPIURL = resolveFromConfigFile()
	}
}

func resolveFromConfigFile() string {
	ctxName := flagContext
	if ctxName == "" {
		ctxName = os.Getenv("VULNDECK_CONTEXT")
	}

	cfg, err := loadConfig()
	if err != nil {
		return ""
	}

	if ctxName == "" {
		ctxName = cfg.CurrentContext
	}

	ctx := cfg.GetContext(ctxName)
	if ctx == nil {
		return ""
	}
	return ctx.Context.APIURL
}

func mustClient() *Client {
	if flagAPIURL == "" {
		fmt.Fprintln(os.Stderr, "Error: API URL not configured. Use --api-url, VULNDECK_API_URL, or 'vulndeck-admin config set-context'")
		os.Exit(1)
	}
	return NewClient(flagAPIURL, flagVerbose)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vulndeck-admin version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var serverInfoCmd = &cobra.Command{
	Use:   "server-info",
	Short: "Display server connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mustClient()
		data, err := client.Get("/ready")
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}

		var resp ReadyResponse
		if err := unmarshal(data, &resp); err != nil {
			return err
		}

		if flagOutput == outputJSON {
			printJSON(resp)
			return nil
		}
		if flagOutput == outputYAML {
			printYAML(resp)
			return nil
		}

		fmt.Fprintf(os.Stdout, "VulnDeck\n")
		fmt.Fprintf(os.Stdout, "  API URL:  %s\n", flagAPIURL)
		fmt.Fprintf(os.Stdout, "  Status:   %s\n", resp.Status)
		if len(resp.Checks) > 0 {
			fmt.Fprintf(os.Stdout, "\nDependencies:\n")
			for name, check := range resp.Checks {
				fmt.Fprintf(os.Stdout, "  %-10s %s (%s)\n", name+":", check.Status, check.Duration)
			}
		}
		return nil
	},
}
