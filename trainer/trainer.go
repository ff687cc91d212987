// Package trainer drives the batch-SOM epoch loop: alternating a
// best/next-best-matching-unit search, a batch codebook update, and an
// adaptive neighborhood-radius update, while logging convergence
// diagnostics every epoch. Epoch sequencing is grounded in
// original_source/src/som.cpp's train() function; the progress-logging
// cadence and Train(iter)-style entry point are grounded in
// bobonovski-gotm/model/lda.go's Train method.
package trainer

import (
	"fmt"
	"io"
	"runtime"
	"time"

	log "github.com/golang/glog"

	"github.com/RasaHQ/semantic-map-embedding/codebook"
	"github.com/RasaHQ/semantic-map-embedding/corpus"
	"github.com/RasaHQ/semantic-map-embedding/neighborhood"
	"github.com/RasaHQ/semantic-map-embedding/topology"
)

// Recorder receives the same per-epoch values written to the
// convergence log, so callers can mirror them into an external metrics
// system (see the metrics package) without the trainer depending on it
// directly.
type Recorder interface {
	Observe(epoch uint32, radiusMin, radiusMax, quantizationError, topographicError, gapError, diffusionError float32)
}

// noopRecorder is used when the caller supplies none.
type noopRecorder struct{}

func (noopRecorder) Observe(uint32, float32, float32, float32, float32, float32, float32) {}

// Config configures a training run. Fields mirror the command-line
// surface of spec.md §6.7.
type Config struct {
	NumEpochs             uint32
	TrainVocabCutoff      uint32
	DeadCellUpdateStrides uint32
	NumWorkers            int
	Verbose               bool
	NeighborhoodSnapshots io.Writer // receives one Neighborhood.Encode call per verbose epoch, nil to disable
	Recorder              Recorder
}

// Trainer ties a corpus, codebook, topology and neighborhood together
// for one training run.
type Trainer struct {
	Corpus       *corpus.Corpus
	Codebook     *codebook.Codebook
	Neighborhood *neighborhood.Neighborhood
	Topology     *topology.Topology
	Config       Config

	log io.Writer // convergence TSV destination
}

// New builds a Trainer. convergenceLog, if non-nil, receives the convergence TSV
// header immediately and one row per epoch as Run progresses.
func New(c *corpus.Corpus, cb *codebook.Codebook, nb *neighborhood.Neighborhood, topo *topology.Topology, cfg Config, convergenceLog io.Writer) *Trainer {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if convergenceLog != nil {
		fmt.Fprintln(convergenceLog, "Epoch\tUnixTime\tRadiusMin\tRadiusMax\tQuantizationError\tTopographicError\tGapError\tDiffusionError")
	}
	return &Trainer{Corpus: c, Codebook: cb, Neighborhood: nb, Topology: topo, Config: cfg, log: convergenceLog}
}

// Run executes Config.NumEpochs epochs of batch training followed by a
// final recompute-and-log pass against the resulting codebook, so the
// last convergence row always reflects the codebook actually written to
// disk rather than the codebook as it stood before the final update.
func (t *Trainer) Run() {
	if !t.Corpus.HasSumOfSquares() {
		t.Corpus.InitSumOfSquares()
	}

	var prevBmu []uint16
	for epoch := uint32(1); epoch <= t.Config.NumEpochs; epoch++ {
		// The BMU search always runs against the configured cutoff; only
		// the update step switches to the full vocabulary on the final
		// epoch.
		updateCutoff := t.Config.TrainVocabCutoff
		if epoch == t.Config.NumEpochs {
			updateCutoff = 0
		}

		bmu, nextBmu, distances := t.Codebook.FindBestAndNextBestMatchingUnits(t.Corpus, t.Config.TrainVocabCutoff, true, t.Config.NumWorkers)

		var gapError float32
		if t.Config.DeadCellUpdateStrides > 0 && epoch%t.Config.DeadCellUpdateStrides == 0 {
			gapError = codebook.AssignDeadCells(bmu, distances, t.Codebook.NumCells())
		} else {
			gapError = codebook.GapError(bmu, t.Codebook.NumCells())
		}

		var diffusionError float32
		if epoch > 1 {
			diffusionError = codebook.DiffusionError(prevBmu, bmu, t.Codebook.Width, t.Topology.Dist)
		}
		prevBmu = append(prevBmu[:0], bmu...)

		if t.Config.Verbose && t.Config.NeighborhoodSnapshots != nil {
			if err := t.Neighborhood.Encode(t.Config.NeighborhoodSnapshots); err != nil {
				log.Warningf("trainer: failed to write neighborhood snapshot for epoch %d: %v", epoch, err)
			}
		}

		t.Codebook.ApplyBatchSOMUpdate(t.Corpus, bmu, t.Neighborhood, updateCutoff, t.Config.NumWorkers)
		topographicError := t.Neighborhood.Update(bmu, nextBmu)

		quantizationError := codebook.QuantizationError(distances)
		t.logRow(epoch-1, quantizationError, topographicError, gapError, diffusionError)
	}

	t.finalPass(prevBmu)
}

// finalPass runs one more BMU search against the codebook as it stood
// after the loop's last update, then applies one more real neighborhood
// update from it, exactly as original_source/src/som.cpp's train() does
// after its epoch loop: the saved .neighborhood file reflects this
// final shrink, not just the last in-loop one. The BMU search here uses
// the same configured cutoff as every other epoch's search; only
// ApplyBatchSOMUpdate ever switches to the full vocabulary.
func (t *Trainer) finalPass(prevBmu []uint16) {
	bmu, nextBmu, distances := t.Codebook.FindBestAndNextBestMatchingUnits(t.Corpus, t.Config.TrainVocabCutoff, true, t.Config.NumWorkers)
	gapError := codebook.GapError(bmu, t.Codebook.NumCells())
	var diffusionError float32
	if prevBmu != nil {
		diffusionError = codebook.DiffusionError(prevBmu, bmu, t.Codebook.Width, t.Topology.Dist)
	}
	topographicError := t.Neighborhood.Update(bmu, nextBmu)
	quantizationError := codebook.QuantizationError(distances)
	t.logRow(t.Config.NumEpochs, quantizationError, topographicError, gapError, diffusionError)
}

func (t *Trainer) logRow(epoch uint32, quantizationError, topographicError, gapError, diffusionError float32) {
	log.Infof("epoch %d/%d: quantization=%f topographic=%f gap=%f diffusion=%f radius=[%f,%f]",
		epoch, t.Config.NumEpochs, quantizationError, topographicError, gapError, diffusionError,
		t.Neighborhood.RadiusMin, t.Neighborhood.RadiusMax)

	if t.log != nil {
		fmt.Fprintf(t.log, "%d\t%d\t%f\t%f\t%f\t%f\t%f\t%f\n",
			epoch, time.Now().Unix(), t.Neighborhood.RadiusMin, t.Neighborhood.RadiusMax,
			quantizationError, topographicError, gapError, diffusionError)
	}

	t.Config.Recorder.Observe(epoch, t.Neighborhood.RadiusMin, t.Neighborhood.RadiusMax,
		quantizationError, topographicError, gapError, diffusionError)
}
