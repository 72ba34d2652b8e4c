package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/dupekit/dupekit/dedup"
)

func scanCmd() *cobra.Command {
	var (
		minSize   int64
		maxSize   int64
		excludes  []string
		workers   int
		algo      string
		strategy  string
		follow    bool
		doDelete  bool
		moveTo    string
		conflict  string
		dryRun    bool
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "scan <root>...",
		Short: "Scan directory trees for duplicate files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig()
			cfg.MinSize = minSize
			cfg.MaxSize = maxSize
			cfg.ExcludePatterns = excludes
			cfg.FollowSymlinks = follow
			if workers > 0 {
				cfg.Workers = workers
			}
			if algo != "" {
				cfg.Algorithm = algo
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			strat, err := dedup.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			policy, err := dedup.ParseConflictPolicy(conflict)
			if err != nil {
				return err
			}

			cache, err := dedup.OpenHashCache(cfg.CachePath, cfg.CacheCapacity, cfg.Algorithm)
			if err != nil {
				return fmt.Errorf("open hash cache: %w", err)
			}
			defer cache.Close()

			scanner, err := dedup.NewScanner(cfg, cache)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := scanner.Events().Subscribe()
			defer scanner.Events().Unsubscribe(events)
			go func() {
				for ev := range events {
					if ev.Type == dedup.EventFileError {
						fmt.Fprintf(os.Stderr, "skipping %s: %s\n", ev.Path, ev.Reason)
					}
				}
			}()

			result, err := scanner.Scan(ctx, args)
			if err != nil {
				return err
			}

			for _, g := range result.Groups {
				if err := dedup.ApplyStrategy(g, strat); err != nil {
					return err
				}
			}
			printGroups(result)

			if result.Cancelled {
				fmt.Println("scan cancelled; results are partial")
			}
			if dryRun || (!doDelete && moveTo == "") {
				return nil
			}

			marked := lo.FlatMap(result.Groups, func(g *dedup.DuplicateGroup, _ int) []string {
				return g.MarkedPaths()
			})
			if len(marked) == 0 {
				return nil
			}

			audit, err := dedup.OpenAuditLog(cfg.AuditPath)
			if err != nil {
				return fmt.Errorf("open audit log: %w", err)
			}
			defer audit.Close()
			exec := dedup.NewExecutor(audit, cfg.TrashDir)

			var results []dedup.ActionRecord
			if moveTo != "" {
				results = exec.MoveBatch(marked, moveTo, policy)
			} else {
				results = exec.DeleteBatch(marked, !permanent)
			}
			printOutcomes(results)
			return nil
		},
	}

	cmd.Flags().Int64Var(&minSize, "min-size", 1, "minimum file size in bytes")
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "maximum file size in bytes (0: unbounded)")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "glob patterns to exclude (trailing / for directories)")
	cmd.Flags().IntVar(&workers, "workers", 0, "hashing worker count (0: logical CPUs)")
	cmd.Flags().StringVar(&algo, "algo", "", "digest algorithm: xxhash or sha256")
	cmd.Flags().StringVar(&strategy, "strategy", "keep-oldest", "which copy to keep: keep-oldest, keep-newest, keep-shortest-path, keep-first-alphabetical")
	cmd.Flags().BoolVar(&follow, "follow-symlinks", false, "follow symlinked directories (cycles are detected)")
	cmd.Flags().BoolVar(&doDelete, "delete", false, "delete files marked for removal")
	cmd.Flags().StringVar(&moveTo, "move-to", "", "move marked files into this directory instead of deleting")
	cmd.Flags().StringVar(&conflict, "on-conflict", "rename", "move collision policy: rename, skip, overwrite")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report only, perform no actions")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "skip the trash and delete permanently")

	return cmd
}

func printGroups(result *dedup.ScanResult) {
	if len(result.Groups) == 0 {
		fmt.Printf("no duplicates found (%d files scanned, %d skipped, %d failed)\n",
			result.FilesScanned, result.FilesSkipped, result.FilesFailed)
		return
	}

	for i, g := range result.Groups {
		fmt.Printf("group %d: %d files × %s (wasted %s)\n",
			i+1, len(g.Files), humanize.IBytes(uint64(g.Size)), humanize.IBytes(uint64(g.WastedSpace())))
		for _, f := range g.Files {
			marker := "keep  "
			if f.MarkedForRemoval {
				marker = "remove"
			}
			fmt.Printf("  [%s] %s\n", marker, f.Path)
		}
	}
	fmt.Printf("\n%d groups, %s reclaimable; %d files scanned, %d skipped, %d failed (%s)\n",
		len(result.Groups), humanize.IBytes(uint64(dedup.TotalWasted(result.Groups))),
		result.FilesScanned, result.FilesSkipped, result.FilesFailed, result.Duration.Round(time.Millisecond))
}

func printOutcomes(results []dedup.ActionRecord) {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		fmt.Fprintf(os.Stderr, "%s %s failed: %s\n", r.Op, r.Source, r.Error)
	}
	fmt.Printf("%d/%d actions succeeded\n", ok, len(results))
}
