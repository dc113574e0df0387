package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/profile"
	"github.com/kennyg/folio/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Save and switch between sets of installed templates",
	Long: `Profiles are named snapshots of the installed templates.

Applying a profile backs up every .github/<kind> directory, removes the
currently installed templates and installs the profile's templates from the
current catalog. Templates no longer offered by any source are skipped.

Examples:
  folio profile save frontend
  folio profile apply backend
  folio profile diff frontend`,
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the installed templates as a profile",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileSave,
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Replace the installed templates with a profile",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileApply,
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved profiles",
	Run:     runProfileList,
}

var profileDeleteCmd = &cobra.Command{
	Use:     "delete <name>...",
	Aliases: []string{"rm"},
	Short:   "Delete saved profiles",
	Args:    cobra.MinimumNArgs(1),
	Run:     runProfileDelete,
}

var profileDiffCmd = &cobra.Command{
	Use:   "diff <name>",
	Short: "Compare the installed templates with a profile",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileDiff,
}

var (
	profileForce bool
	profileYes   bool
)

func init() {
	profileSaveCmd.Flags().BoolVarP(&profileForce, "force", "f", false, "Overwrite an existing profile")
	profileApplyCmd.Flags().BoolVarP(&profileYes, "yes", "y", false, "Apply even if installed templates differ from the last applied profile")

	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileApplyCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileDiffCmd)
}

func runProfileSave(cmd *cobra.Command, args []string) {
	e := openEngine()

	res, err := e.Profiles.Save(args[0], profileForce)
	if errors.Is(err, profile.ErrEmptyLedger) {
		exitWithError("nothing is installed; install templates before saving a profile")
	}
	if err != nil {
		exitWithError(err.Error())
	}
	if res.NeedsConfirmation {
		exitWithError(fmt.Sprintf("profile %q already exists; use --force to overwrite it", args[0]))
	}

	verb := "Saved"
	if res.Overwritten {
		verb = "Updated"
	}
	fmt.Println()
	fmt.Println(ui.SuccessLine(fmt.Sprintf("%s profile %s with %d templates", verb, res.Profile.Name, len(res.Profile.Templates))))
	fmt.Println()
}

func runProfileApply(cmd *cobra.Command, args []string) {
	e := openEngine()

	if _, err := e.Profiles.Get(args[0]); err != nil {
		exitWithError(err.Error())
	}

	if !profileYes {
		confirm, err := e.Profiles.ShouldConfirmSwitch()
		if err != nil {
			exitWithError(err.Error())
		}
		if confirm {
			last := e.Profiles.LastApplied()
			msg := "installed templates are not saved in any profile"
			if last != "" {
				msg = fmt.Sprintf("installed templates differ from profile %q", last)
			}
			exitWithError(msg + "; save them first or rerun with --yes")
		}
	}

	results := e.Refresh(cmd.Context())
	for _, f := range results.Failures() {
		fmt.Println(ui.WarningLine(fmt.Sprintf("%s: %v", f.Name, f.Err)))
	}

	res, err := e.Profiles.Apply(cmd.Context(), args[0])
	if err != nil {
		exitWithError(err.Error())
	}

	fmt.Println()
	fmt.Println(ui.SuccessLine(fmt.Sprintf("Applied profile %s: %d installed, %d skipped", args[0], res.Installed, res.Skipped)))
	if len(res.SkippedNames) > 0 {
		fmt.Println(ui.WarningLine("skipped: " + strings.Join(res.SkippedNames, ", ")))
	}
	for _, kind := range artifact.AllKinds() {
		if p, ok := res.BackupPaths[kind]; ok {
			fmt.Println(ui.RenderMuted("    backup: " + p))
		}
	}
	fmt.Println()
}

func runProfileList(cmd *cobra.Command, args []string) {
	e := openEngine()

	profiles, err := e.Profiles.List()
	if err != nil {
		exitWithError(err.Error())
	}
	if len(profiles) == 0 {
		fmt.Print(ui.EmptyState("No profiles saved", "Run `folio profile save <name>` to create one"))
		return
	}

	last := e.Profiles.LastApplied()

	fmt.Println()
	fmt.Println(ui.SectionHeader("Profiles"))
	fmt.Println()
	for _, p := range profiles {
		marker := "  "
		if p.Name == last {
			marker = ui.Render(ui.Success, "● ")
		}
		fmt.Printf("  %s%s  %s\n", marker, ui.RenderHighlight(p.Name),
			ui.RenderDim(fmt.Sprintf("%d templates, updated %s", len(p.Templates), p.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	}
	fmt.Println()
}

func runProfileDelete(cmd *cobra.Command, args []string) {
	e := openEngine()

	n, err := e.Profiles.Delete(args)
	if err != nil {
		exitWithError(err.Error())
	}
	fmt.Println()
	if n == 0 {
		fmt.Println(ui.InfoLine("no matching profiles"))
	} else {
		fmt.Println(ui.SuccessLine(fmt.Sprintf("Deleted %d profile(s)", n)))
	}
	fmt.Println()
}

func runProfileDiff(cmd *cobra.Command, args []string) {
	e := openEngine()

	d, err := e.Profiles.Diff(args[0])
	if err != nil {
		exitWithError(err.Error())
	}

	fmt.Println()
	if d.Empty() {
		fmt.Println(ui.SuccessLine(fmt.Sprintf("installed templates match profile %s", args[0])))
		fmt.Println()
		return
	}
	for _, id := range d.Added {
		fmt.Println(ui.Render(ui.Success, "  + ") + id.String())
	}
	for _, id := range d.Removed {
		fmt.Println(ui.Render(ui.Error, "  - ") + id.String())
	}
	fmt.Println()
	fmt.Println(ui.RenderMuted(fmt.Sprintf("  %d not in profile, %d missing from workspace", len(d.Added), len(d.Removed))))
	fmt.Println()
}
