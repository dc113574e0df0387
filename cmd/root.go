package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/aggregate"
	"github.com/kennyg/folio/internal/engine"
	"github.com/kennyg/folio/internal/ui"
)

var (
	// Version is set at build time
	Version = "dev"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Template catalog and installer for AI workspaces",
	Long: ui.Logo() + `
  Browse agents, prompts, instructions, chat modes and skills from
  several sources, install them into .github/, and switch between
  saved profiles.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(installedCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("folio %s\n", Version)
	},
}

// openEngine builds the engine for the current workspace
func openEngine() *engine.Engine {
	e, err := engine.Open(slog.Default())
	if err != nil {
		exitWithError(err.Error())
	}
	return e
}

// loadCatalog opens the engine and fetches every source, reporting the
// sources that failed
func loadCatalog(ctx context.Context) *engine.Engine {
	e := openEngine()

	var results *aggregate.Results
	if ui.IsTTY && !verbose {
		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		sp.Suffix = fmt.Sprintf(" Fetching %d sources...", e.Registry.Count())
		sp.Start()
		results = e.Refresh(ctx)
		sp.Stop()
	} else {
		results = e.Refresh(ctx)
	}

	for _, f := range results.Failures() {
		fmt.Fprintln(os.Stderr, ui.WarningLine(fmt.Sprintf("%s: %v", f.Name, f.Err)))
	}
	return e
}

// exitWithError prints an error and exits
func exitWithError(msg string) {
	fmt.Fprintln(os.Stderr, ui.Error.Render("Error: "+msg))
	os.Exit(1)
}
