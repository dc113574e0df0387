package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/engine"
	"github.com/kennyg/folio/internal/ui"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"ls", "list"},
	Short:   "Browse templates from every source",
	Long: `Fetch every enabled source and print the merged catalog grouped by kind.

Examples:
  folio catalog
  folio catalog --kind skills
  folio catalog --source awesome-copilot --kind prompt`,
	Run: runCatalog,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search templates by name",
	Args:  cobra.ExactArgs(1),
	Run:   runSearch,
}

var infoCmd = &cobra.Command{
	Use:   "info <source/kind/name>",
	Short: "Show details about a template",
	Long: `Show a template's metadata and where it would be installed.

Examples:
  folio info awesome-copilot/agents/reviewer.agent.md
  folio info anthropic-skills/skills/pdf`,
	Args: cobra.ExactArgs(1),
	Run:  runInfo,
}

var (
	catalogKind   string
	catalogSource string
)

func init() {
	catalogCmd.Flags().StringVarP(&catalogKind, "kind", "k", "", "Only show one kind (agents, prompts, instructions, chatmodes, skills)")
	catalogCmd.Flags().StringVarP(&catalogSource, "source", "s", "", "Only show one source")
}

func runCatalog(cmd *cobra.Command, args []string) {
	var kind artifact.Kind
	if catalogKind != "" {
		k, err := artifact.ParseKind(catalogKind)
		if err != nil {
			exitWithError(err.Error())
		}
		kind = k
	}

	e := loadCatalog(cmd.Context())

	var ds []artifact.Descriptor
	switch {
	case catalogSource != "" && kind != "":
		ds = e.Index.ByRepositoryAndKind(catalogSource, kind)
	case catalogSource != "":
		ds = e.Index.ByRepository(catalogSource)
	case kind != "":
		ds = e.Index.ByKind(kind)
	default:
		ds = e.Index.All()
	}

	if len(ds) == 0 {
		fmt.Print(ui.EmptyState("No templates found", "Check `folio sources` for failing sources"))
		return
	}

	fmt.Println()
	fmt.Println(ui.SectionHeader("Catalog"))
	printGrouped(e, ds)
}

func runSearch(cmd *cobra.Command, args []string) {
	e := loadCatalog(cmd.Context())
	ds := e.Index.Search(args[0])
	if len(ds) == 0 {
		fmt.Print(ui.NoResults(args[0]))
		return
	}

	fmt.Println()
	fmt.Println(ui.SectionHeader(fmt.Sprintf("%d results for %q", len(ds), args[0])))
	printGrouped(e, ds)
}

// printGrouped prints descriptors under one heading per kind
func printGrouped(e *engine.Engine, ds []artifact.Descriptor) {
	installed, err := e.Installed()
	if err != nil {
		fmt.Println(ui.WarningLine(fmt.Sprintf("could not read installed templates: %v", err)))
	}

	byKind := make(map[artifact.Kind][]artifact.Descriptor)
	for _, d := range ds {
		byKind[d.Kind] = append(byKind[d.Kind], d)
	}

	for _, kind := range artifact.AllKinds() {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		fmt.Println()
		fmt.Printf("  %s %s\n", ui.KindBadge(kind), ui.RenderDim(fmt.Sprintf("(%d)", len(group))))
		for _, d := range group {
			line := ui.TemplateLine(d.Kind, d.DisplayName(), d.Key())
			if installed[d.Identity()] {
				line += "  " + ui.StatusInstalled()
			}
			fmt.Println(line)
		}
	}
	fmt.Println()
}

func runInfo(cmd *cobra.Command, args []string) {
	e := loadCatalog(cmd.Context())

	d, err := e.Resolve(args[0])
	if err != nil {
		exitWithError(err.Error())
	}

	meta, err := e.Metadata(cmd.Context(), d)
	if err != nil {
		fmt.Println(ui.WarningLine(fmt.Sprintf("could not read metadata: %v", err)))
		meta = &artifact.Metadata{Name: d.DisplayName()}
	}

	fmt.Println()
	fmt.Printf("  %s %s\n", ui.KindBadge(d.Kind), ui.Title.Render(meta.Name))
	if meta.Description != "" {
		fmt.Println()
		fmt.Printf("  %s\n", ui.Truncate(meta.Description, ui.DescriptionWidth()))
	}
	fmt.Println()

	fmt.Println(ui.RenderMuted("    Key:     ") + d.Key())
	fmt.Println(ui.RenderMuted("    Source:  ") + d.SourceName + " " + ui.RenderDim("("+d.SourceLocation+")"))
	if meta.Version != "" {
		fmt.Println(ui.RenderMuted("    Version: ") + meta.Version)
	}
	if meta.Author != "" {
		fmt.Println(ui.RenderMuted("    Author:  ") + meta.Author)
	}
	fmt.Println(ui.RenderMuted("    Path:    ") + ui.RenderCode(e.Installer.Path(d)))

	if installed, err := e.Installed(); err == nil && installed[d.Identity()] {
		fmt.Println()
		fmt.Println(ui.SuccessLine("installed"))
	}
	fmt.Println()
}
