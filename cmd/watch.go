package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/index"
	"github.com/kennyg/folio/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch local sources and refresh the catalog on change",
	Long: `Watch every local source folder. Markdown or skill changes refresh
only the source they belong to, after a short quiet period.

Press Ctrl+C to stop.`,
	Run: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := loadCatalog(ctx)

	w := e.NewWatcher()
	if err := w.Start(ctx); err != nil {
		exitWithError(err.Error())
	}
	defer w.Close()

	if w.Watching() == 0 {
		fmt.Print(ui.EmptyState("No local sources to watch", "Add a source with kind: local to config.yaml"))
		return
	}

	unsubscribe := e.Index.Subscribe(func(s *index.Snapshot) {
		fmt.Println(ui.SuccessLine(fmt.Sprintf("catalog updated: %d templates from %d sources", s.Len(), len(s.Repositories()))))
	})
	defer unsubscribe()

	fmt.Println()
	fmt.Println(ui.InfoLine(fmt.Sprintf("watching %d local source(s), %d templates in catalog", w.Watching(), len(e.Index.All()))))
	fmt.Println(ui.RenderMuted("  Press Ctrl+C to stop"))
	fmt.Println()

	<-ctx.Done()
	fmt.Println()
	fmt.Println(ui.InfoLine("stopped"))
}
