package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/installer"
	"github.com/kennyg/folio/internal/ui"
)

var installCmd = &cobra.Command{
	Use:     "install <source/kind/name>...",
	Aliases: []string{"add", "i"},
	Short:   "Install templates into the workspace",
	Long: `Install one or more templates into .github/ in the current workspace.

Already installed templates are left alone unless --force is given.

Examples:
  folio install awesome-copilot/prompts/create-readme.prompt.md
  folio install anthropic-skills/skills/pdf anthropic-skills/skills/xlsx
  folio install my-local/agents/reviewer.md --force`,
	Args: cobra.MinimumNArgs(1),
	Run:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <source/kind/name>...",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove installed templates",
	Args:    cobra.MinimumNArgs(1),
	Run:     runUninstall,
}

var installedCmd = &cobra.Command{
	Use:   "installed",
	Short: "List installed templates",
	Long: `List the templates recorded as installed in this workspace.

Records whose files were deleted outside folio are dropped first.`,
	Run: runInstalled,
}

var installForce bool

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Overwrite templates that are already installed")
}

func runInstall(cmd *cobra.Command, args []string) {
	e := loadCatalog(cmd.Context())

	var ds []artifact.Descriptor
	failed := 0
	for _, key := range args {
		d, err := e.Resolve(key)
		if err != nil {
			failed++
			fmt.Println(ui.ErrorLine(err.Error()))
			continue
		}
		ds = append(ds, d)
	}
	if len(ds) == 0 {
		exitWithError("nothing to install")
	}

	summary := e.Installer.InstallBatch(cmd.Context(), ds, installer.Options{Silent: true, Overwrite: installForce})

	fmt.Println()
	for _, o := range summary.Outcomes {
		if o.Skipped {
			fmt.Println(ui.InfoLine(fmt.Sprintf("%s already installed (use --force to overwrite)", o.Descriptor.Key())))
			continue
		}
		fmt.Println(ui.SuccessLine(fmt.Sprintf("%s %s", ui.KindBadge(o.Descriptor.Kind), o.Descriptor.Key())))
		fmt.Println(ui.RenderMuted("      " + o.Path))
	}
	for _, f := range summary.Failures {
		fmt.Println(ui.ErrorLine(f.Err.Error()))
	}
	failed += summary.Failed

	fmt.Println()
	var kinds []string
	for _, kind := range artifact.AllKinds() {
		if n := summary.ByKind[kind]; n > 0 {
			kinds = append(kinds, fmt.Sprintf("%d %s", n, kind))
		}
	}
	line := fmt.Sprintf("  %d installed, %d skipped, %d failed", summary.Installed, summary.Skipped, failed)
	if len(kinds) > 0 {
		line += " (" + strings.Join(kinds, ", ") + ")"
	}
	fmt.Println(ui.RenderMuted(line))
	fmt.Println()
	if failed > 0 {
		exitWithError("some templates were not installed")
	}
}

func runUninstall(cmd *cobra.Command, args []string) {
	e := openEngine()

	fmt.Println()
	var failed bool
	for _, key := range args {
		id, err := artifact.ParseIdentity(key)
		if err != nil {
			failed = true
			fmt.Println(ui.ErrorLine(err.Error()))
			continue
		}

		d := artifact.InstalledRecord{Source: id.Source, Kind: id.Kind, Name: id.Name}.Descriptor()
		if r, ok, err := e.Ledger.Get(id); err == nil && ok {
			d = r.Descriptor()
		}

		res, err := e.Installer.Uninstall(cmd.Context(), d, installer.Options{Silent: true})
		switch {
		case err != nil:
			failed = true
			fmt.Println(ui.ErrorLine(err.Error()))
		case res.Skipped:
			fmt.Println(ui.InfoLine(key + " was not installed"))
		default:
			fmt.Println(ui.SuccessLine("removed " + key))
		}
	}
	fmt.Println()
	if failed {
		os.Exit(1)
	}
}

func runInstalled(cmd *cobra.Command, args []string) {
	e := openEngine()

	dropped, err := e.Ledger.Reconcile()
	if err != nil {
		exitWithError(err.Error())
	}
	records, err := e.Ledger.List()
	if err != nil {
		exitWithError(err.Error())
	}

	for _, r := range dropped {
		fmt.Println(ui.WarningLine(fmt.Sprintf("%s is missing on disk; dropped from the ledger", r.Identity())))
	}

	if len(records) == 0 {
		fmt.Print(ui.EmptyState("Nothing installed yet", "Run `folio catalog` to browse templates"))
		return
	}

	fmt.Println()
	fmt.Println(ui.SectionHeader("Installed"))
	fmt.Println()
	for _, r := range records {
		fmt.Println(ui.TemplateLine(r.Kind, r.Name, r.Identity().String()))
		fmt.Println(ui.RenderDim("      " + r.InstalledAt.Local().Format("2006-01-02 15:04")))
	}
	fmt.Println()
}
