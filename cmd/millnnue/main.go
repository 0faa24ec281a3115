// Command millnnue inspects, converts and benchmarks mill NNUE networks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hailam/millnnue/internal/bench"
	"github.com/hailam/millnnue/internal/logging"
	"github.com/hailam/millnnue/internal/mill"
	"github.com/hailam/millnnue/internal/storage"
	"github.com/hailam/millnnue/nnue"
	"github.com/hailam/millnnue/nnue/features"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	evalFile   = flag.String("evalfile", "", "NNUE weight file (default: registry, then embedded)")
	largePages = flag.Bool("largepages", true, "back the weights with large pages when possible")
	variant    = flag.String("variant", "nine", "rule variant: nine or twelve")
	storeDir   = flag.String("store", "", `registry directory ("none" disables it; default: platform data dir)`)
	logLevel   = flag.String("loglevel", "info", "log level")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: millnnue [flags] <command> [args]

commands:
  info                      describe the loaded network
  eval <fen>                evaluate a position
  export -o <file> [-leb128] [-zstd]
                            write the loaded network
  import <file>             validate a weight file and add it to the registry
  list                      list registry networks
  delete <digest>           remove a network from the registry
  bench [-threads N] [-games M] [-seed S]
                            play greedy games on N workers

flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if _, err := logging.Setup(*logLevel, true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Error().Err(err).Msg("could not create CPU profile")
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Error().Err(err).Msg("could not start CPU profile")
			return 1
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", profilePath).Msg("cpu-profiling-enabled")
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	store, err := openStore()
	if err != nil {
		log.Warn().Err(err).Msg("registry unavailable")
	}
	if store != nil {
		defer store.Close()
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "info", "eval", "export", "bench":
	case "import":
		err = runImport(store, args)
		return exitCode(err)
	case "list":
		err = runList(store)
		return exitCode(err)
	case "delete":
		err = runDelete(store, args)
		return exitCode(err)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		return 2
	}

	net, err := initNetwork(store)
	if err != nil {
		log.Error().Err(err).Msg("nnue initialisation failed")
		return 1
	}

	switch cmd {
	case "info":
		err = runInfo(net)
	case "eval":
		err = runEval(net, args)
	case "export":
		err = runExport(net, args)
	case "bench":
		err = runBench(net, args)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}

func openStore() (*storage.Storage, error) {
	switch *storeDir {
	case "none":
		return nil, nil
	case "":
		return storage.NewStorage(log.Logger)
	default:
		return storage.Open(*storeDir, log.Logger)
	}
}

// flagSet reports whether name was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// resolveConfig merges the command line with the saved preferences. Flags
// given explicitly win and are remembered for the next run.
func resolveConfig(store *storage.Storage) (nnue.Config, error) {
	prefs := storage.DefaultPreferences()
	if store != nil {
		p, err := store.LoadPreferences()
		if err != nil {
			log.Warn().Err(err).Msg("could not load preferences")
		} else {
			prefs = p
		}
	}

	changed := false
	if flagSet("evalfile") {
		prefs.EvalFile, changed = *evalFile, true
	}
	if flagSet("largepages") {
		prefs.LargePages, changed = *largePages, true
	}
	if flagSet("variant") || prefs.Variant == "" {
		prefs.Variant, changed = *variant, true
	}
	if store != nil && changed {
		if err := store.SavePreferences(prefs); err != nil {
			log.Warn().Err(err).Msg("could not save preferences")
		}
	}

	v, err := features.VariantByName(prefs.Variant)
	if err != nil {
		return nnue.Config{}, err
	}
	return nnue.Config{
		Variant:    v,
		Topology:   nnue.DefaultTopology(),
		LargePages: prefs.LargePages,
		EvalFile:   prefs.EvalFile,
	}, nil
}

// initNetwork loads the process network: an explicit eval file first, then
// the newest compatible registry entry, then the embedded default.
func initNetwork(store *storage.Storage) (*nnue.Network, error) {
	cfg, err := resolveConfig(store)
	if err != nil {
		return nil, err
	}

	if cfg.EvalFile == "" && store != nil {
		hash, err := nnue.NetworkHash(cfg.Variant, cfg.Topology)
		if err != nil {
			return nil, err
		}
		if rec, err := store.FindNetwork(hash); err == nil {
			cfg.Open = func(opts nnue.LoadOptions) (*nnue.Network, error) {
				return store.GetNetwork(rec.Digest, opts)
			}
			cfg.SourceName = fmt.Sprintf("registry:%016x", rec.Digest)
		}
	}

	return nnue.Init(cfg)
}

func runInfo(net *nnue.Network) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "description\t%s\n", net.Description())
	fmt.Fprintf(w, "variant\t%s\n", net.Variant().Name)
	fmt.Fprintf(w, "topology\t%s\n", net.Topology())
	fmt.Fprintf(w, "features\t%d\n", net.Variant().Dimensions())
	fmt.Fprintf(w, "hash\t%08x\n", net.Hash())
	fmt.Fprintf(w, "digest\t%016x\n", net.Digest())
	fmt.Fprintf(w, "size\t%s\n", humanize.IBytes(uint64(net.Size())))
	fmt.Fprintf(w, "memory\t%s\n", net.Strategy())
	return w.Flush()
}

func runEval(net *nnue.Network, args []string) error {
	fen := strings.Join(args, " ")
	if fen == "" {
		fen = mill.StartFEN(net.Variant())
	}
	pos, err := mill.ParseFEN(net.Variant(), fen)
	if err != nil {
		return err
	}

	e := nnue.NewEvaluator(net)
	var b nnue.Breakdown
	if err := nnue.Guard(func() {
		e.Evaluate(pos, nil, features.White)
		b = e.Breakdown(pos)
	}); err != nil {
		return err
	}

	fmt.Println(pos)
	fmt.Printf("bucket      %d\n", b.Bucket)
	fmt.Printf("psqt        %d\n", b.PSQT)
	fmt.Printf("positional  %d\n", b.Positional)
	fmt.Printf("value       %d (side to move)\n", b.Value)
	fmt.Printf("white view  %d\n", e.EvaluatePosition(pos, features.White))
	return nil
}

func runExport(net *nnue.Network, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", "", "output file")
	leb := fs.Bool("leb128", false, "LEB128-compress the feature transformer")
	zst := fs.Bool("zstd", false, "zstd-compress the file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("export: -o is required")
	}

	if err := net.SaveFile(*out, nnue.SaveOptions{LEB128: *leb, Zstd: *zst}); err != nil {
		return err
	}
	if st, err := os.Stat(*out); err == nil {
		log.Info().Str("path", *out).Str("size", humanize.IBytes(uint64(st.Size()))).Msg("network-exported")
	}
	return nil
}

func runImport(store *storage.Storage, args []string) error {
	if store == nil {
		return fmt.Errorf("import: no registry")
	}
	if len(args) != 1 {
		return fmt.Errorf("import: need exactly one file")
	}
	cfg, err := resolveConfig(store)
	if err != nil {
		return err
	}

	net, err := nnue.LoadFile(args[0], nnue.LoadOptions{Variant: cfg.Variant, Topology: cfg.Topology})
	if err != nil {
		return err
	}
	defer net.Close()

	rec, err := store.PutNetwork(net)
	if err != nil {
		return err
	}
	log.Info().
		Str("digest", fmt.Sprintf("%016x", rec.Digest)).
		Str("hash", fmt.Sprintf("%08x", rec.Hash)).
		Str("stored", humanize.IBytes(uint64(rec.Compressed))).
		Msg("network-imported")
	return nil
}

func runList(store *storage.Storage) error {
	if store == nil {
		return fmt.Errorf("list: no registry")
	}
	recs, err := store.ListNetworks()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DIGEST\tHASH\tVARIANT\tSIZE\tADDED\tDESCRIPTION")
	for _, r := range recs {
		fmt.Fprintf(w, "%016x\t%08x\t%s\t%s\t%s\t%s\n",
			r.Digest, r.Hash, r.Variant, humanize.IBytes(uint64(r.Size)), humanize.Time(r.Added), r.Description)
	}
	return w.Flush()
}

func runDelete(store *storage.Storage, args []string) error {
	if store == nil {
		return fmt.Errorf("delete: no registry")
	}
	if len(args) != 1 {
		return fmt.Errorf("delete: need exactly one digest")
	}
	digest, err := strconv.ParseUint(args[0], 16, 64)
	if err != nil {
		return fmt.Errorf("delete: invalid digest %q: %w", args[0], err)
	}
	if err := store.DeleteNetwork(digest); err != nil {
		return err
	}
	log.Info().Str("digest", fmt.Sprintf("%016x", digest)).Msg("network-deleted")
	return nil
}

func runBench(net *nnue.Network, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	threads := fs.Int("threads", 0, "worker goroutines (default GOMAXPROCS)")
	games := fs.Int("games", 64, "games to play")
	plies := fs.Int("plies", 200, "maximum plies per game")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := bench.Run(ctx, net, bench.Config{Threads: *threads, Games: *games, MaxPlies: *plies, Seed: *seed})
	if err != nil {
		return err
	}
	fmt.Printf("games      %d\n", res.Games)
	fmt.Printf("positions  %s\n", humanize.Comma(res.Positions))
	fmt.Printf("time       %v\n", res.Elapsed)
	fmt.Printf("pos/s      %s\n", humanize.Comma(int64(res.PositionsPerSecond())))
	fmt.Printf("checksum   %016x\n", res.Checksum)
	return nil
}
