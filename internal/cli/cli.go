// Package cli implements the policyprobe command line frontend.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/policyprobe/policyprobe/internal/cedarload"
	"github.com/policyprobe/policyprobe/internal/configstore"
	"github.com/policyprobe/policyprobe/internal/engine"
	"github.com/policyprobe/policyprobe/internal/genetic"
	"github.com/policyprobe/policyprobe/internal/httpserver"
	"github.com/policyprobe/policyprobe/internal/policy"
	"github.com/policyprobe/policyprobe/internal/request"
	"github.com/policyprobe/policyprobe/internal/telemetry/otel"
	"github.com/policyprobe/policyprobe/internal/testgen"
	"github.com/policyprobe/policyprobe/internal/ui"
	"github.com/policyprobe/policyprobe/internal/websocket"
)

type options struct {
	configPath string
	format     string
	strategy   string
	sentinel   string
	maxPool    int
	vacuous    string

	population  int
	generations int
	mutation    float64
	crossover   float64
	alpha       float64
	beta        float64
	plateau     int
	seed        int64

	outDir  string
	archive string
	codec   string

	serve     string
	tui       bool
	telemetry bool
}

// Main runs the CLI with the provided argv slice. When args is empty, os.Args
// is used to mirror standard command invocation.
func Main(args []string) error {
	if len(args) == 0 {
		args = os.Args
	}
	name := commandName(args)

	if len(args) > 1 && args[1] == "config" {
		return configMain(name, args[2:])
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Config file path (default: XDG config dir)")
	fs.StringVar(&opts.format, "format", "", "Policy format: xacml or cedar (default: by file extension)")
	fs.StringVar(&opts.strategy, "strategy", "", "Candidate strategy: combinatorial or per-rule")
	fs.StringVar(&opts.sentinel, "sentinel", "", "Out-of-domain sentinel value")
	fs.IntVar(&opts.maxPool, "max-candidates", 0, "Candidate pool cap; negative disables the cap")
	fs.StringVar(&opts.vacuous, "vacuous", "", "Vacuous rule handling: covers-all or never-covered")

	fs.IntVar(&opts.population, "pop", 0, "Population size")
	fs.IntVar(&opts.generations, "generations", 0, "Number of generations")
	fs.Float64Var(&opts.mutation, "mutation", 0, "Per-bit mutation rate")
	fs.Float64Var(&opts.crossover, "crossover", 0, "Crossover rate")
	fs.Float64Var(&opts.alpha, "alpha", 0, "Coverage weight in the fitness function")
	fs.Float64Var(&opts.beta, "beta", 0, "Size penalty weight in the fitness function")
	fs.IntVar(&opts.plateau, "plateau", 0, "Stop after this many generations without improvement (0 = run all)")
	fs.Int64Var(&opts.seed, "seed", 0, "Random seed for reproducible runs (0 = clock)")

	fs.StringVar(&opts.outDir, "out", "", "Directory for generated request documents (blank skips export)")
	fs.StringVar(&opts.archive, "archive", "", "Write the suite as a compressed tar archive to this path")
	fs.StringVar(&opts.codec, "compress", "", "Archive compression: gzip or brotli (default: by archive extension)")

	fs.StringVar(&opts.serve, "serve", "", "Serve live run events on this address (e.g. :18080)")
	fs.BoolVar(&opts.tui, "tui", false, "Show live progress in the terminal")
	fs.BoolVar(&opts.telemetry, "otel", false, "Record run metrics and traces")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <policy-file>\n", name)
		fmt.Fprintf(fs.Output(), "       %s config init\n\n", name)
		fmt.Fprintf(fs.Output(), "Generate a minimized conformance test suite for an access control policy.\n\n")
		fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("exactly one policy file is required")
	}
	policyPath := fs.Arg(0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return run(ctx, policyPath, opts)
}

func configMain(name string, args []string) error {
	if len(args) != 1 || args[0] != "init" {
		return fmt.Errorf("usage: %s config init", name)
	}
	if err := configstore.Save(configstore.New()); err != nil {
		return err
	}
	_, file, err := configstore.GetConfigPath()
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", file)
	return nil
}

func run(ctx context.Context, policyPath string, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	rules, err := loadPolicy(policyPath, opts.format)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return fmt.Errorf("policy %s contains no rules", policyPath)
	}

	engCfg := engine.Config{
		Generator: generatorOptions(cfg, opts),
		Optimizer: optimizerOptions(cfg, opts),
	}

	var provider *otel.Provider
	if opts.telemetry {
		provider, err = otel.Setup(ctx, otel.Config{
			ServiceName:   "policyprobe",
			EnableMetrics: true,
			EnableTraces:  true,
		})
		if err != nil {
			return fmt.Errorf("set up telemetry: %w", err)
		}
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				log.Printf("telemetry shutdown: %v", err)
			}
		}()
		engCfg.Instruments = provider.Runs()
	}

	var hub *websocket.Hub
	var srv *http.Server
	if opts.serve != "" {
		hub = websocket.NewHub(4096)
		go hub.Run()
		srv = httpserver.NewWebServer(opts.serve, httpserver.NewMonitorMux(hub))
		go func() {
			log.Printf("serving run events on %s", opts.serve)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("event server: %v", err)
			}
		}()
		defer func() {
			_ = srv.Shutdown(context.Background())
		}()
		engCfg.Observers = append(engCfg.Observers, websocket.NewObserver(hub))
	}

	var summary engine.Summary
	var suite []testgen.Vector
	if opts.tui && ui.SupportsTTY(os.Stdout) {
		summary, suite, err = runWithView(ctx, rules, engCfg)
	} else {
		summary, suite, err = engine.Run(ctx, rules, engCfg)
	}
	if err != nil {
		return err
	}

	if err := export(suite, cfg, opts); err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(out))

	if opts.serve != "" {
		log.Printf("run complete; event server still listening on %s, interrupt to exit", opts.serve)
		<-ctx.Done()
	}
	return nil
}

// runWithView runs the pipeline behind a live terminal view. The engine runs
// on its own goroutine; the view owns the terminal until the run finishes or
// the user aborts.
func runWithView(ctx context.Context, rules []policy.Rule, engCfg engine.Config) (engine.Summary, []testgen.Vector, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := ui.NewRunView(os.Stdout, engCfg.Optimizer.Generations)
	engCfg.Observers = append(engCfg.Observers, view)

	type runResult struct {
		summary engine.Summary
		suite   []testgen.Vector
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		s, suite, err := engine.Run(ctx, rules, engCfg)
		done <- runResult{s, suite, err}
	}()

	if err := view.Run(); err != nil {
		cancel()
		<-done
		return engine.Summary{}, nil, fmt.Errorf("terminal view: %w", err)
	}
	cancel() // the user may have quit mid-run
	res := <-done
	return res.summary, res.suite, res.err
}

func loadConfig(opts options) (configstore.Config, error) {
	if opts.configPath != "" {
		return configstore.LoadFile(opts.configPath)
	}
	return configstore.Load()
}

func loadPolicy(path, format string) ([]policy.Rule, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".cedar") {
			format = "cedar"
		} else {
			format = "xacml"
		}
	}
	switch format {
	case "xacml":
		return policy.ParseXACMLFile(path)
	case "cedar":
		return cedarload.ParseFile(path)
	default:
		return nil, fmt.Errorf("unknown policy format %q (want xacml or cedar)", format)
	}
}

func generatorOptions(cfg configstore.Config, opts options) testgen.Options {
	gen := cfg.GeneratorOptions()
	if opts.strategy != "" {
		gen.Strategy = testgen.Strategy(opts.strategy)
	}
	if opts.sentinel != "" {
		gen.Sentinel = opts.sentinel
	}
	if opts.maxPool != 0 {
		gen.MaxCandidates = opts.maxPool
	}
	if opts.vacuous != "" {
		gen.Vacuous = testgen.VacuousMode(opts.vacuous)
	}
	return gen
}

func optimizerOptions(cfg configstore.Config, opts options) genetic.Config {
	ga := cfg.OptimizerOptions()
	if opts.population != 0 {
		ga.PopulationSize = opts.population
	}
	if opts.generations != 0 {
		ga.Generations = opts.generations
	}
	if opts.mutation != 0 {
		ga.MutationRate = opts.mutation
	}
	if opts.crossover != 0 {
		ga.CrossoverRate = opts.crossover
	}
	if opts.alpha != 0 {
		ga.Alpha = opts.alpha
	}
	if opts.beta != 0 {
		ga.Beta = opts.beta
	}
	if opts.plateau != 0 {
		ga.Plateau = opts.plateau
	}
	if opts.seed != 0 {
		ga.Seed = opts.seed
	}
	return ga
}

func export(suite []testgen.Vector, cfg configstore.Config, opts options) error {
	dir := opts.outDir
	if dir == "" && opts.archive == "" {
		dir = cfg.Export.Dir
	}
	if dir != "" {
		if err := request.WriteSuite(dir, suite); err != nil {
			return fmt.Errorf("write suite: %w", err)
		}
	}

	if opts.archive != "" {
		codec, err := archiveCodec(opts.archive, opts.codec, cfg.Export.Compression)
		if err != nil {
			return err
		}
		f, err := os.Create(opts.archive)
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}
		if err := request.WriteArchive(f, suite, codec); err != nil {
			_ = f.Close()
			return fmt.Errorf("write archive: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
		log.Printf("wrote %d requests to %s", len(suite), opts.archive)
	}
	return nil
}

func archiveCodec(path, flagCodec, configCodec string) (request.Compression, error) {
	raw := flagCodec
	if raw == "" {
		switch {
		case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
			raw = string(request.Gzip)
		case strings.HasSuffix(path, ".tar.br"):
			raw = string(request.Brotli)
		default:
			raw = configCodec
		}
	}
	switch request.Compression(raw) {
	case request.Gzip, request.Brotli:
		return request.Compression(raw), nil
	default:
		return "", fmt.Errorf("unknown compression %q (want gzip or brotli)", raw)
	}
}

func commandName(args []string) string {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "policyprobe"
	}
	return filepath.Base(args[0])
}
