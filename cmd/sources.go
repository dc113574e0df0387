package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/provider"
	"github.com/kennyg/folio/internal/ui"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured template sources",
	Long: `List the built-in and user-configured sources and fetch each one to
report how many templates it offers.

Sources are configured in ~/.config/folio/config.yaml or
.config/folio/config.yaml in the workspace.`,
	Run: runSources,
}

func runSources(cmd *cobra.Command, args []string) {
	e := openEngine()
	results := e.Refresh(cmd.Context())

	fmt.Println()
	fmt.Println(ui.SectionHeader("Sources"))
	fmt.Println()

	for _, cfg := range e.Settings.Sources {
		tag := string(cfg.Kind)
		if cfg.Builtin {
			tag += ", built-in"
		}
		fmt.Printf("  %s  %s\n", ui.RenderHighlight(cfg.Name), ui.RenderDim("("+tag+")"))
		fmt.Printf("    %s\n", ui.RenderMuted(cfg.Location))

		if !cfg.Enabled {
			fmt.Println(ui.InfoLine("disabled"))
			fmt.Println()
			continue
		}

		res, ok := results.Sources[cfg.Name]
		switch {
		case !ok:
			fmt.Println(ui.ErrorLine("could not be initialized (run with --verbose)"))
		case res.Success:
			kinds := make([]string, 0, len(cfg.Kinds()))
			for _, k := range cfg.Kinds() {
				kinds = append(kinds, string(k))
			}
			fmt.Println(ui.SuccessLine(fmt.Sprintf("%d templates (%s) in %s", len(res.Descriptors), strings.Join(kinds, ", "), res.Duration.Round(time.Millisecond))))
		case provider.IsAuthRequired(res.Err):
			fmt.Println(ui.WarningLine("needs sign-in: set GITHUB_TOKEN or run `gh auth login`"))
		default:
			fmt.Println(ui.ErrorLine(res.Err.Error()))
		}
		fmt.Println()
	}

	for _, rej := range e.Settings.Rejected {
		fmt.Println(ui.WarningLine(rej.Error()))
	}
}
