// Package codebook implements the dense cell×dimension prototype matrix
// a semantic map trains, together with best-matching-unit search, the
// batch update rule, and the convergence diagnostics derived from it.
// Dense storage and accessor shape are grounded in
// bobonovski-gotm/matrix/dense_matrix.go, generalized from uint32 row/col
// storage to float32 cell/dim storage. The numerics (distance formula,
// batch update, error metrics, dead-cell reassignment) are grounded in
// original_source/src/som.cpp's Codebook class.
package codebook

import (
	"io"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sync"

	log "github.com/golang/glog"

	"github.com/RasaHQ/semantic-map-embedding/corpus"
	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
	"github.com/RasaHQ/semantic-map-embedding/matrix"
	"github.com/RasaHQ/semantic-map-embedding/neighborhood"
)

// Codebook is a dense NumCells×InputDim matrix of prototype weights,
// stored row-major by cell.
type Codebook struct {
	Height   uint32
	Width    uint32
	InputDim uint32
	Values   []float32
}

// NumCells is Height*Width.
func (cb *Codebook) NumCells() uint32 {
	return cb.Height * cb.Width
}

// NewRandom allocates an uninitialized codebook of the given shape. Call
// Init to fill it before use.
func NewRandom(height, width, inputDim uint32) *Codebook {
	return &Codebook{
		Height:   height,
		Width:    width,
		InputDim: inputDim,
		Values:   make([]float32, uint64(height)*uint64(width)*uint64(inputDim)),
	}
}

// Init fills the codebook with independent uniform[0,1) values, one
// random-number stream per worker so the result is reproducible for a
// fixed seed and worker count. Grounded in original_source/src/som.cpp's
// Codebook::init, which seeds one RNG per OpenMP thread by adding the
// thread index to the base seed.
func (cb *Codebook) Init(seed uint64, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	n := len(cb.Values)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(seed) + int64(worker)))
			for i := worker; i < n; i += numWorkers {
				cb.Values[i] = float32(rng.Float64())
			}
		}(w)
	}
	wg.Wait()
}

func (cb *Codebook) row(cell uint32) []float32 {
	start := uint64(cell) * uint64(cb.InputDim)
	return cb.Values[start : start+uint64(cb.InputDim)]
}

// effectiveInputDim clamps a requested vocabulary cutoff to the
// codebook's actual input dimension; a cutoff of 0 means "no cutoff".
func (cb *Codebook) effectiveInputDim(cutoff uint32) uint32 {
	if cutoff == 0 || cutoff > cb.InputDim {
		return cb.InputDim
	}
	return cutoff
}

func dot(row []float32, indices []uint32, weights []uint8, effectiveInputDim uint32) float32 {
	var sum float32
	for k, idx := range indices {
		if idx >= effectiveInputDim {
			break
		}
		w := float32(1)
		if weights != nil {
			w = float32(weights[k])
		}
		sum += row[idx] * w
	}
	return sum
}

func normSquared(row []float32, effectiveInputDim uint32) float32 {
	var sum float32
	for _, v := range row[:effectiveInputDim] {
		sum += v * v
	}
	return sum
}

// squaredDistance returns the squared Euclidean distance between cell's
// prototype and the sparse row (idx, wts), restricted to the first
// effectiveInputDim dimensions, optionally corrected by the row's own
// sum of squares so the result is an exact squared distance rather than
// one missing the constant term. The clamp to 0 only applies once the
// row's own sum of squares has been added back in: the uncorrected
// identity ‖w‖²−2⟨w,x⟩ is routinely negative for a close cell and is
// only ever meaningful for ranking, never as a standalone distance, so
// clamping it here would corrupt the ranking it exists to produce.
func (cb *Codebook) squaredDistance(cell []float32, idx []uint32, wts []uint8, sumOfSquares float32, correct bool, effectiveInputDim uint32) float32 {
	d := normSquared(cell, effectiveInputDim) - 2*dot(cell, idx, wts, effectiveInputDim)
	if correct {
		d += sumOfSquares
		if d < 0 {
			d = 0
		}
	}
	return d
}

func forEachRowRange(numRows uint32, numWorkers int, fn func(row uint32)) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for row := uint32(worker); row < numRows; row += uint32(numWorkers) {
				fn(row)
			}
		}(w)
	}
	wg.Wait()
}

// FindBestMatchingUnits assigns to bmu[r] the cell index closest to
// corpus row r under the restricted-dimension squared-distance metric.
// needCorrectDistances controls whether the row's own sum-of-squares
// constant is added back in (needed when the caller wants a true
// distance, e.g. for quantization error; omitted during the hot BMU
// search loop since it is a per-row constant that never changes which
// cell wins).
func (cb *Codebook) FindBestMatchingUnits(c *corpus.Corpus, cutoff uint32, needCorrectDistances bool, numWorkers int) (bmu []uint16, distances []float32) {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	effectiveInputDim := cb.effectiveInputDim(cutoff)
	numCells := cb.NumCells()

	bmu = make([]uint16, c.NumRows)
	distances = make([]float32, c.NumRows)

	forEachRowRange(c.NumRows, numWorkers, func(row uint32) {
		idx := c.IndicesInRow(row)
		wts := c.WeightsInRow(row)
		var sumSq float32
		if needCorrectDistances && c.HasSumOfSquares() {
			sumSq = float32(c.SumOfSquares(row))
		}

		best := uint32(0)
		bestDist := float32(math.MaxFloat32)
		for cell := uint32(0); cell < numCells; cell++ {
			d := cb.squaredDistance(cb.row(cell), idx, wts, sumSq, needCorrectDistances, effectiveInputDim)
			if d < bestDist {
				bestDist = d
				best = cell
			}
		}
		bmu[row] = uint16(best)
		distances[row] = bestDist
	})

	return bmu, distances
}

// FindBestAndNextBestMatchingUnits is FindBestMatchingUnits but also
// tracks, for each row, the cell that would have been best had the
// actual best not existed: whenever a strictly closer cell demotes the
// running best, the demoted cell becomes the running next-best.
func (cb *Codebook) FindBestAndNextBestMatchingUnits(c *corpus.Corpus, cutoff uint32, needCorrectDistances bool, numWorkers int) (bmu, nextBmu []uint16, distances []float32) {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	effectiveInputDim := cb.effectiveInputDim(cutoff)
	numCells := cb.NumCells()

	bmu = make([]uint16, c.NumRows)
	nextBmu = make([]uint16, c.NumRows)
	distances = make([]float32, c.NumRows)

	forEachRowRange(c.NumRows, numWorkers, func(row uint32) {
		idx := c.IndicesInRow(row)
		wts := c.WeightsInRow(row)
		var sumSq float32
		if needCorrectDistances && c.HasSumOfSquares() {
			sumSq = float32(c.SumOfSquares(row))
		}

		best, next := uint32(0), uint32(0)
		bestDist, nextDist := float32(math.MaxFloat32), float32(math.MaxFloat32)
		for cell := uint32(0); cell < numCells; cell++ {
			d := cb.squaredDistance(cb.row(cell), idx, wts, sumSq, needCorrectDistances, effectiveInputDim)
			if d < bestDist {
				next, nextDist = best, bestDist
				best, bestDist = cell, d
			} else if d < nextDist {
				next, nextDist = cell, d
			}
		}
		bmu[row] = uint16(best)
		nextBmu[row] = uint16(next)
		distances[row] = bestDist
	})

	return bmu, nextBmu, distances
}

// ApplyBatchSOMUpdate recomputes every cell's prototype as the
// neighborhood-weighted mean of the rows assigned (directly or via
// neighborhood influence) to it, following
// original_source/src/som.cpp's apply_batch_som_update: cells with zero
// total influence (h<=0 for every row, or a zero denominator) keep their
// previous value. Row weights bias BMU selection only; every present
// index counts as 1 here regardless of its corpus weight. cutoff
// restricts which indices accumulate influence, but the write-back
// always covers every dimension of the cell, zeroing dimensions at or
// beyond the cutoff whenever the cell does receive influence.
func (cb *Codebook) ApplyBatchSOMUpdate(c *corpus.Corpus, bmu []uint16, nb *neighborhood.Neighborhood, cutoff uint32, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	effectiveInputDim := cb.effectiveInputDim(cutoff)
	if effectiveInputDim == 0 {
		return
	}
	numCells := cb.NumCells()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			// One worker-local scratch buffer for the running numerator,
			// reused across every target cell this worker owns. Sized to
			// the full input dimension: the cutoff only restricts which
			// indices accumulate influence, not which dimensions get
			// written back.
			numerator := matrix.NewCacheMatrix(1, cb.InputDim)
			for target := uint32(worker); target < numCells; target += uint32(numWorkers) {
				for i := uint32(0); i < cb.InputDim; i++ {
					numerator.Set(0, i, 0)
				}
				var denominator float32

				for row := uint32(0); row < c.NumRows; row++ {
					h := nb.Influence(uint32(bmu[row]), target)
					if h <= 0 {
						continue
					}
					idx := c.IndicesInRow(row)
					for _, ix := range idx {
						if ix >= effectiveInputDim {
							break
						}
						numerator.Set(0, ix, numerator.Get(0, ix)+h)
					}
					denominator += h
				}

				if denominator == 0 {
					continue
				}
				cell := cb.row(target)
				for i := uint32(0); i < cb.InputDim; i++ {
					cell[i] = numerator.Get(0, i) / denominator
				}
			}
		}(w)
	}
	wg.Wait()
}

// QuantizationError is sqrt(Σ distance(row, bmu(row))²) / NumRows, the
// root total reconstruction error normalized by dataset size. distances
// are already squared Euclidean distances, so this squares them again,
// matching original_source/src/som.cpp's error accumulation bit-for-bit.
func QuantizationError(distances []float32) float32 {
	if len(distances) == 0 {
		return 0
	}
	var sum float32
	for _, d := range distances {
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum))) / float32(len(distances))
}

// GapError is the fraction of cells that received no BMU assignment at
// all ("dead cells").
func GapError(bmu []uint16, numCells uint32) float32 {
	if numCells == 0 {
		return 0
	}
	used := make([]bool, numCells)
	for _, b := range bmu {
		used[b] = true
	}
	var unused uint32
	for _, u := range used {
		if !u {
			unused++
		}
	}
	return float32(unused) / float32(numCells)
}

// DiffusionError is the mean topology distance between each row's
// previous- and current-epoch BMU cell, over every row (rows whose BMU
// did not change contribute zero).
func DiffusionError(prevBmu, curBmu []uint16, width uint32, dist func(y1, x1, y2, x2 int) uint16) float32 {
	if len(curBmu) == 0 {
		return 0
	}
	var sum float64
	for r := range curBmu {
		y1, x1 := int(prevBmu[r])/int(width), int(prevBmu[r])%int(width)
		y2, x2 := int(curBmu[r])/int(width), int(curBmu[r])%int(width)
		sum += float64(dist(y1, x1, y2, x2))
	}
	return float32(sum / float64(len(curBmu)))
}

// AssignDeadCells reassigns the BMU array (never the codebook itself) of
// the worst-distance rows to cells that received no BMU assignment, in
// ascending cell-index order, and returns the gap error measured before
// the reassignment. It leaves bmu unchanged when there are no dead cells
// (returning 0) or when there are more dead cells than rows to donate —
// exactly original_source/src/som.cpp's assign_dead_cells.
func AssignDeadCells(bmu []uint16, distances []float32, numCells uint32) float32 {
	used := make([]bool, numCells)
	for _, b := range bmu {
		used[b] = true
	}
	var unused []uint32
	for cell := uint32(0); cell < numCells; cell++ {
		if !used[cell] {
			unused = append(unused, cell)
		}
	}

	gapError := float32(len(unused)) / float32(numCells)
	if len(unused) == 0 || len(unused) > len(bmu) {
		return gapError
	}

	order := make([]int, len(bmu))
	for i := range order {
		order[i] = i
	}
	// Partial selection: pull the len(unused) worst-distance rows to the
	// front via a simple selection pass, then reassign them in index order.
	for i := 0; i < len(unused); i++ {
		worst := i
		for j := i + 1; j < len(order); j++ {
			if distances[order[j]] > distances[order[worst]] {
				worst = j
			}
		}
		order[i], order[worst] = order[worst], order[i]
	}
	for i, cell := range unused {
		bmu[order[i]] = uint16(cell)
	}

	log.Infof("reassigned %d dead cells", len(unused))
	return gapError
}

// SaveToFile writes the codebook using the little-endian binary layout
// of spec.md §6.2.
func (cb *Codebook) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return semerr.Wrap(semerr.IO, "codebook: "+err.Error())
	}
	defer f.Close()
	return cb.Encode(f)
}

// Encode writes the codebook to w using the little-endian binary layout
// of spec.md §6.2.
func (cb *Codebook) Encode(w io.Writer) error {
	bw := iobin.NewWriter(w)
	bw.WriteUint8(0)
	bw.WriteUint64AsU64(uint64(cb.Height))
	bw.WriteUint64AsU64(uint64(cb.Width))
	bw.WriteUint64AsU64(uint64(cb.InputDim))
	bw.WriteFloat32Slice(cb.Values)
	return bw.Flush()
}

// LoadFromFile reads a codebook previously written by SaveToFile.
func LoadFromFile(path string) (*Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "codebook: "+err.Error())
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a codebook from r using the little-endian binary layout
// of spec.md §6.2.
func Decode(r io.Reader) (*Codebook, error) {
	br := iobin.NewReader(r)
	format := br.ReadUint8()
	if err := br.Err(); err != nil {
		return nil, err
	}
	if format != 0 {
		return nil, semerr.Wrapf(semerr.Format, "codebook: unsupported format %d", format)
	}
	height := br.ReadUint64AsU64()
	width := br.ReadUint64AsU64()
	inputDim := br.ReadUint64AsU64()
	if err := br.Err(); err != nil {
		return nil, err
	}

	values := br.ReadFloat32Slice(height * width * inputDim)
	if err := br.Err(); err != nil {
		return nil, err
	}

	return &Codebook{
		Height:   uint32(height),
		Width:    uint32(width),
		InputDim: uint32(inputDim),
		Values:   values,
	}, nil
}
