// archivectl inspects and maintains the local history archive while the
// daemon is stopped or between runs (the archive is WAL-mode SQLite, so
// read-only inspection is safe alongside a running daemon).
//
// Usage:
//
//	archivectl -list 10                 # print the 10 most recent snapshots
//	archivectl -daily 2025-08-01:      # print daily activity from a date on
//	archivectl -prune 90 -vacuum       # drop snapshots older than 90 days
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atlasoi/tokensync/internal/archive"
	"github.com/atlasoi/tokensync/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment when empty)")
	dbPath := flag.String("path", "", "archive path override")
	list := flag.Int("list", 0, "print the N most recent snapshots")
	daily := flag.String("daily", "", "print daily activity for a start:end date range (either side may be empty)")
	prune := flag.Int("prune", 0, "delete snapshots older than N days")
	vacuum := flag.Bool("vacuum", false, "reclaim file space after pruning")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	path := *dbPath
	if path == "" {
		cfg, err := config.Resolve(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Archive.Disabled || cfg.Archive.Path == "" {
			fmt.Fprintln(os.Stderr, "archive is disabled; pass -path to operate on a file directly")
			os.Exit(1)
		}
		path = cfg.Archive.Path
	}

	arch, err := archive.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open archive %s: %v\n", path, err)
		os.Exit(1)
	}
	defer arch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ran := false

	if *list > 0 {
		ran = true
		if err := printSnapshots(ctx, arch, *list); err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *daily != "" {
		ran = true
		if err := printDaily(ctx, arch, *daily); err != nil {
			fmt.Fprintf(os.Stderr, "daily failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *prune > 0 {
		ran = true
		cutoff := time.Now().AddDate(0, 0, -*prune)
		removed, err := arch.PruneSnapshots(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("pruned %d snapshots captured before %s\n", removed, cutoff.Format("2006-01-02"))
	}

	if *vacuum {
		ran = true
		if err := arch.Vacuum(); err != nil {
			fmt.Fprintf(os.Stderr, "vacuum failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("vacuum complete")
	}

	if !ran {
		flag.Usage()
		os.Exit(2)
	}
}

func printSnapshots(ctx context.Context, arch *archive.Archive, n int) error {
	snaps, err := arch.RecentSnapshots(ctx, n)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		fmt.Printf("[SNAPSHOT] captured=%s sessions=%d tokens=%d cost=%.4f models=%d\n",
			s.CapturedAt.Format(time.RFC3339), s.TotalSessions, s.TotalTokens, s.TotalCost, len(s.Models))
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots")
	}
	return nil
}

func printDaily(ctx context.Context, arch *archive.Archive, window string) error {
	start, end, ok := strings.Cut(window, ":")
	if !ok {
		// A bare date means that single day.
		end = start
	}
	recs, err := arch.DailyRange(ctx, start, end)
	if err != nil {
		return err
	}
	for _, d := range recs {
		fmt.Printf("[DAILY] date=%s sessions=%d tokens=%d cost=%.4f\n",
			d.Date, d.SessionCount, d.TotalTokens, d.TotalCost)
	}
	if len(recs) == 0 {
		fmt.Println("no daily activity in range")
	}
	return nil
}
