package nnue

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hailam/millnnue/nnue/features"
)

// Config selects the process-wide network.
type Config struct {
	Variant    features.Variant
	Topology   Topology
	LargePages bool

	// Source, when set, is read instead of EvalFile.
	Source io.Reader
	// Open, when set and Source is not, produces the network instead of
	// EvalFile. It receives the load options derived from this Config.
	Open func(LoadOptions) (*Network, error)
	// SourceName labels Source or Open in logs.
	SourceName string
	// EvalFile is a weight file path. Empty selects the embedded default.
	EvalFile string
}

var initState struct {
	once sync.Once
	net  *Network
	err  error
}

// Init loads the process-wide network exactly once. Later calls return the
// first result and ignore their Config. It must complete before any worker
// evaluates.
func Init(cfg Config) (*Network, error) {
	initState.once.Do(func() {
		initState.net, initState.err = load(cfg)
	})
	return initState.net, initState.err
}

// Default returns the network loaded by Init, or nil.
func Default() *Network {
	return initState.net
}

func load(cfg Config) (*Network, error) {
	opts := LoadOptions{Variant: cfg.Variant, Topology: cfg.Topology, LargePages: cfg.LargePages}

	var (
		net    *Network
		err    error
		source string
	)
	switch {
	case cfg.Source != nil:
		source = cfg.SourceName
		if source == "" {
			source = "reader"
		}
		net, err = Load(cfg.Source, opts)
	case cfg.Open != nil:
		source = cfg.SourceName
		if source == "" {
			source = "custom"
		}
		net, err = cfg.Open(opts)
	case cfg.EvalFile != "":
		source = cfg.EvalFile
		net, err = LoadFile(cfg.EvalFile, opts)
	default:
		source = "embedded"
		net, err = EmbeddedDefault(opts)
	}
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("nnue-network-rejected")
		return nil, fmt.Errorf("nnue init: %w", err)
	}

	log.Info().
		Str("source", source).
		Str("variant", net.Variant().Name).
		Str("topology", net.Topology().String()).
		Str("hash", fmt.Sprintf("%08x", net.Hash())).
		Str("size", humanize.IBytes(uint64(net.Size()))).
		Stringer("memory", net.Strategy()).
		Msg("nnue-network-loaded")
	return net, nil
}
