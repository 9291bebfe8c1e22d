package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/attachment"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/store/replay"
)

var pruneFlags struct {
	olderThan time.Duration
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Sweep aged attachment blobs and stale replay copies",
	Long: `Remove attachment blobs older than the retention age and replay
copies whose events are older than the retention age.

Blobs are normally deleted after a successful upload and swept by the
in-process cron schedule; prune runs the same sweep on demand, for
installations where the host process is short-lived.

Examples:
  # Sweep with the configured retention age
  callisto prune

  # Sweep everything older than a day
  callisto prune --older-than 24h

  # Report what would be removed without removing it
  callisto prune --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().DurationVar(&pruneFlags.olderThan, "older-than", 0, "retention age override (default: configured max_blob_age)")
	pruneCmd.Flags().BoolVar(&pruneFlags.dryRun, "dry-run", false, "report without removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	maxAge := pruneFlags.olderThan
	if maxAge <= 0 {
		maxAge = cfg.Attachments.MaxBlobAge
	}

	material, err := readKeyMaterial(&cfg.Encryption)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	engine, err := crypto.NewEngine(material)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}

	service, err := attachment.NewService(&attachment.Config{
		BlobDir:      cfg.Attachments.BlobDir,
		MaxPerEvent:  cfg.Attachments.MaxPerEvent,
		MaxFileSize:  cfg.Attachments.MaxFileSize,
		MaxTotalSize: cfg.Attachments.MaxTotalSize,
		MaxBlobAge:   cfg.Attachments.MaxBlobAge,
	}, engine)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}

	before, err := service.Usage()
	if err != nil {
		return cli.NewCommandError("prune", fmt.Errorf("failed to measure blob usage: %w", err))
	}

	if pruneFlags.dryRun {
		fmt.Printf("blob storage: %d bytes (retention %s); dry run, nothing removed\n", before, maxAge)
		return reportStaleReplays(cfg, maxAge)
	}

	removed, err := service.Cleanup(maxAge)
	if err != nil {
		return cli.NewCommandError("prune", fmt.Errorf("blob sweep failed: %w", err))
	}
	after, _ := service.Usage()
	fmt.Printf("swept %d blobs (%d -> %d bytes)\n", removed, before, after)

	return pruneStaleReplays(cfg, maxAge)
}

// pruneStaleReplays removes replay copies whose events are older than
// the retention age. Removal is transactional per event and cascades to
// the attachment rows.
func pruneStaleReplays(cfg *config.Config, maxAge time.Duration) error {
	store, err := openReplayStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	events, err := store.GetAll(ctx)
	if err != nil {
		return cli.NewCommandError("prune", fmt.Errorf("failed to read replay store: %w", err))
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			if err := store.Remove(ctx, ev.EventID); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove replay copy %s: %v\n", ev.EventID, err)
				continue
			}
			removed++
		}
	}
	fmt.Printf("removed %d stale replay copies\n", removed)
	return nil
}

func reportStaleReplays(cfg *config.Config, maxAge time.Duration) error {
	store, err := openReplayStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.GetAll(context.Background())
	if err != nil {
		return cli.NewCommandError("prune", fmt.Errorf("failed to read replay store: %w", err))
	}

	cutoff := time.Now().Add(-maxAge)
	stale := 0
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			stale++
		}
	}
	fmt.Printf("replay store: %d copies, %d stale\n", len(events), stale)
	return nil
}

func openReplayStore(cfg *config.Config) (*replay.SQLiteStore, error) {
	store, err := replay.NewSQLiteStore(&replay.Config{
		Path:        cfg.Storage.ReplayDBPath,
		MaxRows:     cfg.Storage.ReplayMaxRows,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, cli.NewCommandError("prune", fmt.Errorf("failed to open replay store: %w", err))
	}
	return store, nil
}

// readKeyMaterial resolves the encryption key bytes from config.
func readKeyMaterial(cfg *config.EncryptionConfig) ([]byte, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		return data, nil
	}
	return []byte(cfg.Key), nil
}
