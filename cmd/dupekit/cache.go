package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dupekit/dupekit/dedup"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the hash cache",
	}
	cmd.AddCommand(cacheStatsCmd(), cachePruneCmd(), cacheClearCmd())
	return cmd
}

func withCache(fn func(c *dedup.HashCache) error) error {
	cfg := buildConfig()
	c, err := dedup.OpenHashCache(cfg.CachePath, cfg.CacheCapacity, cfg.Algorithm)
	if err != nil {
		return fmt.Errorf("open hash cache: %w", err)
	}
	defer c.Close()
	return fn(c)
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and hit counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *dedup.HashCache) error {
				s := c.Stats()
				fmt.Printf("entries: %d\nhits: %d\nmisses: %d\nevictions: %d\n",
					s.Entries, s.Hits, s.Misses, s.Evictions)
				return nil
			})
		},
	}
}

func cachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop cache entries whose files no longer exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *dedup.HashCache) error {
				n, err := c.Prune()
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d entries\n", n)
				return nil
			})
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *dedup.HashCache) error {
				if err := c.Clear(); err != nil {
					return err
				}
				fmt.Println("cache cleared")
				return nil
			})
		},
	}
}
