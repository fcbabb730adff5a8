package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/output"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Replay queued changes against the server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")

		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		if statusOnly {
			return printSyncStatus(st)
		}

		s, err := buildSyncer(st)
		if err != nil {
			return err
		}

		summary, err := s.Sync(cmd.Context())
		if err != nil {
			if errors.Is(err, syncer.ErrOffline) {
				output.Warning("offline; changes stay queued")
				return nil
			}
			output.Error("sync: %v", err)
			return err
		}
		if summary.Skipped {
			output.Info("a sync pass is already running")
			return nil
		}

		fmt.Println(output.FormatSummary(summary))
		if summary.Conflicts > 0 {
			output.Warning("run 'satchel conflicts' to review and resolve")
		}
		return nil
	},
}

func printSyncStatus(st *store.Store) error {
	stats, err := st.GetQueueStats()
	if err != nil {
		output.Error("queue stats: %v", err)
		return err
	}

	lastSync, err := st.GetMeta(store.MetaLastSyncAt)
	if err != nil {
		return err
	}
	if lastSync == "" {
		lastSync = "never"
	}

	output.Title("Sync Status")
	fmt.Printf("last sync:  %s\n", lastSync)
	fmt.Printf("queued:     %d\n", stats.Queued)
	fmt.Printf("terminal:   %d\n", stats.Terminal)
	fmt.Printf("conflicted: %d\n", stats.Conflicted)

	if lastErr, err := st.GetMeta(store.MetaLastSyncError); err == nil && lastErr != "" {
		output.Warning("last error: %s", lastErr)
	}
	return nil
}

func init() {
	syncCmd.Flags().Bool("status", false, "show queue and last-sync state without syncing")
	rootCmd.AddCommand(syncCmd)
}
