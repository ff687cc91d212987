// Command smap trains a semantic map over a sparse snippet corpus.
// Cobra command structure and slog-based logging are grounded in
// baranylcn-dit/internal/cli's CLI type and newTrainCommand.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RasaHQ/semantic-map-embedding/codebook"
	"github.com/RasaHQ/semantic-map-embedding/corpus"
	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
	"github.com/RasaHQ/semantic-map-embedding/internal/logging"
	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
	"github.com/RasaHQ/semantic-map-embedding/metrics"
	"github.com/RasaHQ/semantic-map-embedding/neighborhood"
	"github.com/RasaHQ/semantic-map-embedding/semanticmap"
	"github.com/RasaHQ/semantic-map-embedding/topology"
	"github.com/RasaHQ/semantic-map-embedding/trainer"
)

const (
	version = "0.1.0"
	author  = "RasaHQ"
)

func main() {
	if iobin.HostIsBigEndian() {
		fmt.Fprintln(os.Stderr, "smap: this module's on-disk formats are little-endian only; refusing to run on a big-endian host")
		os.Exit(1)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smap:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "smap",
		Short:   "Batch self-organizing map trainer for sparse snippet corpora",
		Version: version,
	}
	root.SetVersionTemplate(fmt.Sprintf("smap %s, %s\n", version, author))
	root.PersistentFlags().Bool("author", false, "print author information and exit")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if printAuthor, _ := cmd.Flags().GetBool("author"); printAuthor {
			fmt.Fprintln(os.Stderr, author)
			os.Exit(0)
		}
		return nil
	}
	root.AddCommand(newCreateCommand())
	root.AddCommand(newInspectCommand())
	return root
}

type createOptions struct {
	directory             string
	name                  string
	priorName             string
	initialRadius         float64
	updateExponent        float64
	epochs                uint32
	globalTopology        uint8
	localTopology         uint8
	trainVocabCutoff      uint32
	deadCellUpdateStrides uint32
	nonAdaptive           bool
	verbose               bool
	metricsAddr           string
}

func newCreateCommand() *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <corpus> <width> <height>",
		Short: "Train a new semantic map from a binary corpus file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.directory, "directory", "", "output directory for the trained codebook, neighborhood and semantic map (required)")
	flags.StringVar(&opts.name, "name", "", "base name for the output files (required)")
	flags.StringVar(&opts.priorName, "prior-name", "", "base name of an existing codebook to load as the initial state")
	flags.Float64Var(&opts.initialRadius, "initial-radius", 0, "initial neighborhood radius (default (width+height)/2)")
	flags.Float64Var(&opts.updateExponent, "update-exponent", 0, "per-epoch radius shrink exponent (default drives the minimum radius to 1.5 by the final epoch)")
	flags.Uint32Var(&opts.epochs, "epochs", 10, "number of training epochs (>=2)")
	flags.Uint8Var(&opts.globalTopology, "global-topology", uint8(topology.PLANE), "global topology: 0=TORUS 1=MOEBIUS 2=TUBE 4=PLANE")
	flags.Uint8Var(&opts.localTopology, "local-topology", uint8(topology.RECT), "local topology: 4=CIRC 6=HEXA 8=RECT")
	flags.Uint32Var(&opts.trainVocabCutoff, "train-vocab-cutoff", 0, "vocabulary index cutoff applied to every epoch but the last (0 disables)")
	flags.Uint32Var(&opts.deadCellUpdateStrides, "dead-cell-update-strides", 0, "reassign unused cells every N epochs (0 disables)")
	flags.BoolVar(&opts.nonAdaptive, "non-adaptive", false, "let every cell's radius shrink without the topographic discontinuity lower bound")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging and per-epoch neighborhood snapshots")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address while training runs")

	cmd.MarkFlagRequired("directory")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runCreate(args []string, opts *createOptions) error {
	corpusPath := args[0]
	width, err := parsePositiveUint32(args[1], "width")
	if err != nil {
		return err
	}
	height, err := parsePositiveUint32(args[2], "height")
	if err != nil {
		return err
	}

	if opts.epochs < 2 {
		return semerr.Wrap(semerr.Validation, "smap: --epochs must be >= 2")
	}

	if opts.initialRadius == 0 {
		opts.initialRadius = (float64(width) + float64(height)) / 2
	}
	if opts.initialRadius < 1 {
		return semerr.Wrap(semerr.Validation, "smap: --initial-radius must be >= 1")
	}

	if opts.updateExponent == 0 {
		opts.updateExponent = neighborhood.DefaultUpdateExponent(opts.initialRadius, opts.epochs)
	}
	if opts.updateExponent <= 0 || opts.updateExponent > 1 {
		return semerr.Wrap(semerr.Validation, "smap: --update-exponent must lie in (0, 1]")
	}

	topo, err := topology.New(topology.GlobalTopology(opts.globalTopology), topology.LocalTopology(opts.localTopology), int(height), int(width))
	if err != nil {
		return err
	}

	logging.Init(opts.verbose)
	defer logging.Flush()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("loading corpus", "path", corpusPath)
	c, err := corpus.Load(corpusPath)
	if err != nil {
		return err
	}

	if opts.trainVocabCutoff > c.NumCols {
		return semerr.Wrapf(semerr.Validation, "smap: --train-vocab-cutoff %d exceeds vocabulary size %d", opts.trainVocabCutoff, c.NumCols)
	}
	if opts.trainVocabCutoff > 0 && c.MinWordIndexToAvoidEmptyRow() > opts.trainVocabCutoff {
		slog.Warn("some training snippets are empty at this cutoff", "train_vocab_cutoff", opts.trainVocabCutoff)
	}

	var cb *codebook.Codebook
	if opts.priorName != "" {
		cb, err = codebook.LoadFromFile(filepath.Join(opts.directory, opts.priorName+".codebook"))
		if err != nil {
			return err
		}
	} else {
		cb = codebook.NewRandom(height, width, c.NumCols)
		cb.Init(1, runtime.NumCPU())
	}

	nb := neighborhood.New(topo, float32(opts.initialRadius), opts.updateExponent, !opts.nonAdaptive)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				slog.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	if err := os.MkdirAll(opts.directory, 0o755); err != nil {
		return semerr.Wrap(semerr.IO, "smap: "+err.Error())
	}
	convergencePath := filepath.Join(opts.directory, opts.name+".convergence.tsv")
	convergenceFile, err := os.Create(convergencePath)
	if err != nil {
		return semerr.Wrap(semerr.IO, "smap: "+err.Error())
	}
	defer convergenceFile.Close()

	var snapshotWriter *os.File
	if opts.verbose {
		snapshotWriter, err = os.Create(filepath.Join(opts.directory, opts.name+".neighborhood-snapshots.bin"))
		if err != nil {
			return semerr.Wrap(semerr.IO, "smap: "+err.Error())
		}
		defer snapshotWriter.Close()
	}

	cfg := trainer.Config{
		NumEpochs:             opts.epochs,
		TrainVocabCutoff:      opts.trainVocabCutoff,
		DeadCellUpdateStrides: opts.deadCellUpdateStrides,
		Verbose:               opts.verbose,
		NeighborhoodSnapshots: snapshotWriter,
		Recorder:              recorder,
	}
	tr := trainer.New(c, cb, nb, topo, cfg, convergenceFile)

	slog.Info("training", "epochs", opts.epochs, "width", width, "height", height,
		"initial_radius", opts.initialRadius, "update_exponent", opts.updateExponent)
	tr.Run()

	if err := cb.SaveToFile(filepath.Join(opts.directory, opts.name+".codebook")); err != nil {
		return err
	}
	if err := nb.SaveToFile(filepath.Join(opts.directory, opts.name+".neighborhood")); err != nil {
		return err
	}

	sm := semanticmap.Build(c, cb, opts.trainVocabCutoff, runtime.NumCPU())
	if err := sm.SaveBestMatchingUnitsToFile(filepath.Join(opts.directory, opts.name+".bmu")); err != nil {
		return err
	}
	if sm.Overflowed {
		slog.Warn("semantic map count table overflowed; no counts file written")
	} else if err := sm.SaveCountsToFile(filepath.Join(opts.directory, opts.name+".counts")); err != nil {
		return err
	}

	slog.Info("done", "directory", opts.directory, "name", opts.name)
	return nil
}

func parsePositiveUint32(s, label string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil || v == 0 {
		return 0, semerr.Wrapf(semerr.Validation, "smap: %s must be a positive integer, got %q", label, s)
	}
	return v, nil
}

