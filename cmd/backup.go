package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Inspect and prune directory backups",
	Long: `Applying a profile copies each .github/<kind> directory to a
timestamped sibling first. These commands manage those copies.`,
}

var backupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List backups, newest first",
	Run:     runBackupList,
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than the retention window",
	Run:   runBackupCleanup,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <kind> <backup>",
	Short: "Put a backup of a kind directory back in place",
	Long: `Replace .github/<kind> with one of its backups, as listed by
` + "`folio backup list`" + `. If the copy fails the current directory is put back.

Example:
  folio backup restore agents agents.backup-2025-01-31T09-30-00.000`,
	Args: cobra.ExactArgs(2),
	Run:  runBackupRestore,
}

var backupRetention int

func init() {
	backupCleanupCmd.Flags().IntVar(&backupRetention, "days", 0, "Retention window in days (default from config)")

	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

func runBackupList(cmd *cobra.Command, args []string) {
	e := openEngine()

	backups, err := e.ListBackups()
	if err != nil {
		exitWithError(err.Error())
	}
	if len(backups) == 0 {
		fmt.Print(ui.EmptyState("No backups", "Backups are created when a profile is applied"))
		return
	}

	fmt.Println()
	fmt.Println(ui.SectionHeader("Backups"))
	for _, kind := range artifact.AllKinds() {
		infos := backups[kind]
		if len(infos) == 0 {
			continue
		}
		fmt.Println()
		fmt.Printf("  %s\n", ui.KindBadge(kind))
		for _, b := range infos {
			fmt.Printf("    %s  %s\n", b.Name, ui.RenderDim(b.ModTime.Local().Format("2006-01-02 15:04")))
		}
	}
	fmt.Println()
}

func runBackupCleanup(cmd *cobra.Command, args []string) {
	e := openEngine()
	if backupRetention > 0 {
		e.Settings.BackupRetentionDays = backupRetention
	}

	removed, err := e.CleanupBackups()
	if err != nil {
		exitWithError(err.Error())
	}

	total := 0
	for _, paths := range removed {
		total += len(paths)
	}

	fmt.Println()
	if total == 0 {
		fmt.Println(ui.InfoLine(fmt.Sprintf("no backups older than %d days", e.Settings.BackupRetentionDays)))
	} else {
		fmt.Println(ui.SuccessLine(fmt.Sprintf("removed %d backup(s)", total)))
	}
	fmt.Println()
}

func runBackupRestore(cmd *cobra.Command, args []string) {
	kind, err := artifact.ParseKind(args[0])
	if err != nil {
		exitWithError(err.Error())
	}

	e := openEngine()
	dropped, err := e.RestoreBackup(kind, args[1])
	if err != nil {
		exitWithError(err.Error())
	}

	fmt.Println()
	fmt.Println(ui.SuccessLine(fmt.Sprintf("restored %s from %s", ui.KindBadge(kind), args[1])))
	for _, r := range dropped {
		fmt.Println(ui.RenderMuted("    no longer installed: " + r.Identity().String()))
	}
	fmt.Println()
}
