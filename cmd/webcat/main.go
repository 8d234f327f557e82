package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/whois-api-llc/web-categorization-v2/pkg/classify"
	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/extract"
	"github.com/whois-api-llc/web-categorization-v2/pkg/fetch"
	"github.com/whois-api-llc/web-categorization-v2/pkg/pipeline"
	"github.com/whois-api-llc/web-categorization-v2/pkg/store"
)

const version = "2.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fetch":
		runFetch(os.Args[2:])
	case "classify":
		runClassify(os.Args[2:])
	case "run":
		runAll(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("webcat %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`webcat - domain fetch and categorization pipeline

Usage:
  webcat <command> [options]

Commands:
  fetch     Resolve and fetch a domain list into the store
  classify  Classify fetched domains (rules, hash cache, LLM)
  run       Fetch then classify in one invocation
  stats     Show store statistics
  export    Export domains with classifications as CSV
  validate  Validate configuration file
  version   Show version info

Run 'webcat <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}
	return appCfg
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	return ctx, cancel
}

func openStore(ctx context.Context, dsn string, log *logrus.Logger) *store.PostgresStore {
	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("Store error: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("Schema error: %v", err)
	}
	return st
}

func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	input := fs.String("input", "", "Domain list file (plain or rank,domain CSV)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat fetch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webcat fetch -input top-1m.csv\n")
		fmt.Fprintf(os.Stderr, "  webcat fetch -config prod.yaml -input domains.txt\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	st := openStore(ctx, appCfg.DatabaseDSN, log)
	defer st.Close()

	if err := executeFetch(ctx, appCfg, st, *input, log); err != nil {
		log.Fatalf("Fetch run failed: %v", err)
	}
}

func executeFetch(ctx context.Context, appCfg *config.AppConfig, st store.Store, input string, log *logrus.Logger) error {
	shards := fetch.NewClientShards(appCfg.Fetch.ClientShards, appCfg.HTTPClientSettings, log)
	extractor := extract.NewExtractor(appCfg.Classify.MaxSnippetLen)
	fetcher := fetch.NewFetcher(shards, extractor, appCfg.Fetch, log)
	resolver := fetch.NewResolver(appCfg.Fetch.DNSTimeout, log)
	limiter := fetch.NewRateLimiter(appCfg.Fetch.RateLimit, log.WithField("component", "ratelimit"))

	p := pipeline.NewFetchPipeline(appCfg.Fetch, st, resolver, fetcher, limiter, log)
	return p.Run(ctx, input)
}

func runClassify(args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat classify [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	st := openStore(ctx, appCfg.DatabaseDSN, log)
	defer st.Close()

	if err := executeClassify(ctx, appCfg, st, log); err != nil {
		log.Fatalf("Classification run failed: %v", err)
	}
}

func executeClassify(ctx context.Context, appCfg *config.AppConfig, st store.Store, log *logrus.Logger) error {
	inferencer, err := classify.NewLLMClassifier(appCfg.Classify, log)
	if err != nil {
		return err
	}

	errlog, err := pipeline.OpenErrorLog(appCfg.Classify.ErrorLog)
	if err != nil {
		return err
	}
	defer errlog.Close()

	p := pipeline.NewClassifyPipeline(appCfg.Classify, st, inferencer, errlog, log)
	return p.Run(ctx)
}

// runAll fetches then classifies in one invocation.
func runAll(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	input := fs.String("input", "", "Domain list file (plain or rank,domain CSV)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat run [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	st := openStore(ctx, appCfg.DatabaseDSN, log)
	defer st.Close()

	if err := executeFetch(ctx, appCfg, st, *input, log); err != nil {
		log.Fatalf("Fetch run failed: %v", err)
	}
	if ctx.Err() != nil {
		log.Warn("Shutdown requested, skipping classification")
		return
	}
	if err := executeClassify(ctx, appCfg, st, log); err != nil {
		log.Fatalf("Classification run failed: %v", err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat stats [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger("warn")
	appCfg := loadAndValidateConfig(*configFile, log)

	ctx := context.Background()
	st := openStore(ctx, appCfg.DatabaseDSN, log)
	defer st.Close()

	summary, err := st.Stats(ctx)
	if err != nil {
		log.Fatalf("Stats error: %v", err)
	}
	printSummary(os.Stdout, summary)
}

func printSummary(w io.Writer, s *store.Summary) {
	fmt.Fprintf(w, "Domains:        %d\n", s.TotalDomains)
	fmt.Fprintf(w, "  classified:   %d\n", s.Classified)
	fmt.Fprintf(w, "  pending:      %d\n", s.Unclassified)
	fmt.Fprintf(w, "Hash cache:     %d entries\n", s.HashCacheEntries)

	printCounts(w, "Fetch status", s.FetchStatusCount)
	printCounts(w, "Methods", s.MethodCount)
	printCounts(w, "Categories", s.CategoryCount)
}

func printCounts(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	output := fs.String("output", "", "Output CSV path (default stdout)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger("warn")
	appCfg := loadAndValidateConfig(*configFile, log)

	ctx := context.Background()
	st := openStore(ctx, appCfg.DatabaseDSN, log)
	defer st.Close()

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Create output: %v", err)
		}
		defer f.Close()
		w = f
	}

	written, err := st.ExportCSV(ctx, w)
	if err != nil {
		log.Fatalf("Export error: %v", err)
	}
	if *output != "" {
		fmt.Printf("Exported %d rows to %s\n", written, *output)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webcat validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}
