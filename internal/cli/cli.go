// Package cli dispatches the transcheck commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/hctt-w/transcheck/internal/audit"
	"github.com/hctt-w/transcheck/internal/cache"
	"github.com/hctt-w/transcheck/internal/config"
	"github.com/hctt-w/transcheck/internal/history"
	"github.com/hctt-w/transcheck/internal/logger"
	"github.com/hctt-w/transcheck/internal/report"
	"github.com/hctt-w/transcheck/internal/upstream"
)

// Run executes the command named by args[0].
func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "check":
		return cmdCheck(args[1:], checkBoth)
	case "collection":
		return cmdCheck(args[1:], checkCollectionOnly)
	case "update":
		return cmdCheck(args[1:], checkUpdateOnly)
	case "cache":
		return cmdCache(args[1:])
	case "history":
		return cmdHistory(args[1:])
	case "version", "--version", "-v":
		return cmdVersion()
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown command: %s\nRun 'transcheck help' for usage", args[0])
	}
}

func usage() error {
	fmt.Print(`transcheck - documentation mirror checker

COMMANDS
  check       Run both audits: collection, then update
  collection  Report upstream files with no local counterpart
  update      Report collected files that are stale upstream
  cache       Inspect or drop the metadata cache (status, clear)
  history     List recent check runs
  version     Show version information
  help        Show this help

EXAMPLES
  transcheck check                     # Audit the mirror in the current directory
  transcheck check -keep-going         # Collect bad front matter instead of aborting
  transcheck check -report out.json    # Also write a report artifact
  transcheck update -token $TOKEN      # Authenticated update audit only
  transcheck cache status              # Show cache namespace ages
  transcheck history -n 5              # Last five runs

Checks are configured by transcheck.jsonc in the project root; defaults
follow the syzkaller docs mirror convention.
`)
	return nil
}

// checkMode selects which audits a command runs.
type checkMode int

const (
	checkBoth checkMode = iota
	checkCollectionOnly
	checkUpdateOnly
)

type checkOptions struct {
	root      string
	repo      string
	token     string
	ttl       string
	state     string
	reportOut string
	keepGoing bool
	quiet     bool
	debug     bool
}

func bindCheckFlags(fs *flag.FlagSet) *checkOptions {
	opts := &checkOptions{}
	fs.StringVar(&opts.root, "root", ".", "project root holding the local collection")
	fs.StringVar(&opts.repo, "repo", "", "upstream repository as owner/name (overrides config)")
	fs.StringVar(&opts.token, "token", "", "GitHub token (else config, else $"+config.TokenEnv+")")
	fs.StringVar(&opts.ttl, "ttl", "", "cache validity window, e.g. 72h (overrides config)")
	fs.StringVar(&opts.state, "state", "", "state directory (default ~/.transcheck)")
	fs.StringVar(&opts.reportOut, "report", "", "also write a JSON report artifact to this path")
	fs.BoolVar(&opts.keepGoing, "keep-going", false, "collect per-file front-matter errors instead of aborting")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress progress logging")
	fs.BoolVar(&opts.debug, "debug", false, "log per-lookup details")
	return opts
}

func (o *checkOptions) applyLogLevel() {
	switch {
	case o.quiet:
		logger.SetLevel(logger.LevelOff)
	case o.debug:
		logger.SetLevel(logger.LevelDebug)
	default:
		logger.SetLevel(logger.LevelInfo)
	}
}

func (o *checkOptions) layout() (config.Layout, error) {
	if o.state != "" {
		return config.EnsureLayoutAt(o.state)
	}
	return config.EnsureLayout()
}

func (o *checkOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.root)
	if err != nil {
		return cfg, err
	}
	if o.repo != "" {
		cfg.Repo = o.repo
	}
	if o.ttl != "" {
		cfg.TTL = o.ttl
	}
	cfg.ResolveToken(o.token)
	if _, err := cfg.CacheTTL(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func cmdCheck(args []string, mode checkMode) error {
	name := map[checkMode]string{checkBoth: "check", checkCollectionOnly: "collection", checkUpdateOnly: "update"}[mode]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	opts := bindCheckFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.applyLogLevel()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	layout, err := opts.layout()
	if err != nil {
		return err
	}
	source, err := upstream.NewGitHub(cfg.Repo, cfg.Token)
	if err != nil {
		return err
	}
	store := cache.Open(layout.CachePath())
	checker, err := audit.New(cfg, store, source)
	if err != nil {
		return err
	}
	checker.KeepGoing = opts.keepGoing

	ctx := context.Background()
	startedAt := time.Now()
	var uncollected []string
	var updateRes audit.UpdateResult

	if mode != checkUpdateOnly {
		uncollected, err = checker.CheckCollection(ctx)
		if err != nil {
			return err
		}
		logger.Info("Found %d uncollected files", len(uncollected))
	}
	if mode != checkCollectionOnly {
		updateRes, err = checker.CheckUpdate(ctx)
		if err != nil {
			return err
		}
		logger.Info("Found %d stale files (%d unknown, %d current, %d errors)",
			len(updateRes.Stale()), len(updateRes.Unknown()), updateRes.CurrentCount(), len(updateRes.Errors))
	}

	rep := report.New(cfg.Repo, startedAt, uncollected, updateRes)
	if opts.reportOut != "" {
		if err := report.Write(opts.reportOut, rep); err != nil {
			return err
		}
		logger.Info("Report written to %s", opts.reportOut)
	}
	recordRun(layout, rep)

	logger.Info("Done!")
	return nil
}

// recordRun appends the run to the history trail. History failures never fail
// the check itself.
func recordRun(layout config.Layout, rep report.Report) {
	db, err := history.Open(layout.HistoryPath())
	if err != nil {
		logger.Error("open history: %v", err)
		return
	}
	defer db.Close()

	started, _ := time.Parse(time.RFC3339, rep.StartedAt)
	completed, _ := time.Parse(time.RFC3339, rep.CompletedAt)
	err = history.Record(db, history.Run{
		RunID:       rep.RunID,
		Repo:        rep.Repo,
		StartedAt:   started,
		CompletedAt: completed,
		Uncollected: len(rep.Uncollected),
		Stale:       len(rep.Stale),
		Unknown:     len(rep.Unknown),
		Current:     rep.CurrentCount,
		Errors:      len(rep.Errors),
	})
	if err != nil {
		logger.Error("record history: %v", err)
	}
}

func cmdCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	state := fs.String("state", "", "state directory (default ~/.transcheck)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sub := "status"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}

	var layout config.Layout
	var err error
	if *state != "" {
		layout, err = config.EnsureLayoutAt(*state)
	} else {
		layout, err = config.EnsureLayout()
	}
	if err != nil {
		return err
	}
	store := cache.Open(layout.CachePath())

	switch sub {
	case "status":
		fmt.Printf("cache file: %s\n", store.Path())
		for _, ns := range store.Status() {
			age := "never refreshed"
			if ns.CacheTime.Unix() > 0 {
				age = fmt.Sprintf("refreshed %s ago", time.Since(ns.CacheTime).Round(time.Second))
			}
			fmt.Printf("  %-8s %4d entries, %s\n", ns.Name, ns.Entries, age)
		}
		return nil
	case "clear":
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("cache cleared: %s\n", store.Path())
		return nil
	default:
		return fmt.Errorf("unknown cache subcommand: %s (want status or clear)", sub)
	}
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 10, "number of runs to show")
	state := fs.String("state", "", "state directory (default ~/.transcheck)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("-n must be positive, got %d", *limit)
	}

	var layout config.Layout
	var err error
	if *state != "" {
		layout, err = config.EnsureLayoutAt(*state)
	} else {
		layout, err = config.EnsureLayout()
	}
	if err != nil {
		return err
	}
	db, err := history.Open(layout.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := history.Recent(db, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-24s uncollected=%d stale=%d unknown=%d current=%d errors=%d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Repo,
			r.Uncollected, r.Stale, r.Unknown, r.Current, r.Errors)
	}
	return nil
}
