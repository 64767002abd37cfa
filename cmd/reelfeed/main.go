/*
Package main is the entry point for the reelfeed CLI.

reelfeed ranks a catalog of short videos for one viewer, learns from watch
behavior, and serves an endless prefetched feed.

Usage:
  reelfeed [command]

Available Commands:
  feed        Play through the feed
  recommend   Rank the catalog for the viewer and explain each pick
  track       Record a view of an item
  search      Full-text search over the catalog
  learning    Inspect or reset the viewer's watch history
  config      Show or create the configuration file
  version     Show version information

Examples:
  # Play 20 items and record each as watched
  reelfeed feed --steps 20 --track

  # Explain the top picks among travel clips
  reelfeed recommend --filter '"#travel" in hashtags'
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/khanglvm/reelfeed/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
