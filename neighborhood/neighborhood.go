// Package neighborhood implements the per-cell adaptive neighborhood
// radius a trainer uses to weight how strongly a BMU's update propagates
// to nearby cells, and the topographic-discontinuity bookkeeping that
// keeps the radius from shrinking below what the map's current topology
// needs. Grounded in original_source/src/som.cpp's Neighbourhood class.
package neighborhood

import (
	"io"
	"math"
	"os"

	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
	"github.com/RasaHQ/semantic-map-embedding/topology"
)

// sqrtE is Kiviluoto's adaptive-radius kernel constant (Kiviluoto,
// "Topology preservation in self-organizing maps",
// doi:10.1109/ICNN.1996.548907), ported from
// original_source/src/som.cpp.
const sqrtE = 1.6487212707001281468486507878142

// DefaultUpdateExponent returns the update exponent that drives
// initialRadius down to a minimum radius of 1.5 after exactly numEpochs
// repeated applications of values[c] ← values[c]^E.
func DefaultUpdateExponent(initialRadius float64, numEpochs uint32) float64 {
	return math.Exp((math.Log(math.Log(1.5)) - math.Log(math.Log(initialRadius))) / float64(numEpochs))
}

// Neighborhood holds one adaptive radius per cell of a Height×Width
// grid.
type Neighborhood struct {
	topo              *topology.Topology
	Height, Width     uint32
	Values            []float32
	RadiusMin         float32
	RadiusMax         float32
	UpdateExponent    float64
	RespectLowerBound bool
}

// New builds a Neighborhood over topo, every cell initialized to
// initialRadius (≥1). updateExponent must lie in (0,1]; respectLowerBound
// is the --non-adaptive inverse: when true, Update never lets a cell's
// radius fall below the bound a topographic discontinuity there implies.
func New(topo *topology.Topology, initialRadius float32, updateExponent float64, respectLowerBound bool) *Neighborhood {
	numCells := uint32(topo.Height * topo.Width)
	values := make([]float32, numCells)
	for i := range values {
		values[i] = initialRadius
	}
	return &Neighborhood{
		topo:              topo,
		Height:            uint32(topo.Height),
		Width:             uint32(topo.Width),
		Values:            values,
		RadiusMin:         initialRadius,
		RadiusMax:         initialRadius,
		UpdateExponent:    updateExponent,
		RespectLowerBound: respectLowerBound,
	}
}

func (n *Neighborhood) cellCoord(cell uint32) (y, x int) {
	return int(cell / n.Width), int(cell % n.Width)
}

// Influence is Kiviluoto's adaptive-radius kernel between a source cell
// s (a snippet's BMU) and a target cell t, using t's own current
// radius: h(s,t) = (1 − √e·exp(−d²/(2r²))) / (r·(1 − √e)) for d < r,
// else 0, where r = Values[t] and d = grid distance(s,t).
func (n *Neighborhood) Influence(source, target uint32) float32 {
	sy, sx := n.cellCoord(source)
	ty, tx := n.cellCoord(target)
	d := float64(n.topo.Dist(sy, sx, ty, tx))

	r := float64(n.Values[target])
	if r <= 0 || d >= r {
		return 0
	}
	h := (1 - sqrtE*math.Exp(-0.5*d*d/(r*r))) / (r * (1 - sqrtE))
	return float32(h)
}

type discontinuity struct {
	cell1, cell2 uint32
	distance     uint16
}

func discontinuitiesFor(topo *topology.Topology, width uint32, bmu, nextBmu []uint16) []discontinuity {
	cellCoord := func(cell uint32) (int, int) { return int(cell / width), int(cell % width) }
	var discontinuities []discontinuity
	for r := range bmu {
		y1, x1 := cellCoord(uint32(bmu[r]))
		y2, x2 := cellCoord(uint32(nextBmu[r]))
		d := topo.Dist(y1, x1, y2, x2)
		if d > 1 {
			discontinuities = append(discontinuities, discontinuity{uint32(bmu[r]), uint32(nextBmu[r]), d})
		}
	}
	return discontinuities
}

// Update builds the epoch's topographic discontinuities from the
// best/next-best BMU pairs, derives each cell's radius lower bound from
// them, then shrinks every cell's radius via values[c] ← values[c]^E —
// clamped to that cell's lower bound when RespectLowerBound is set.
// Grounded in original_source/src/som.cpp's Neighbourhood::update.
func (n *Neighborhood) Update(bmu, nextBmu []uint16) (topographicError float32) {
	discontinuities := discontinuitiesFor(n.topo, n.Width, bmu, nextBmu)
	if len(bmu) > 0 {
		topographicError = float32(len(discontinuities)+1) / float32(len(bmu))
	}

	newValues := make([]float32, len(n.Values))
	for cell := range n.Values {
		cy, cx := n.cellCoord(uint32(cell))
		lowerBound := float32(1)
		for _, disc := range discontinuities {
			d1y, d1x := n.cellCoord(disc.cell1)
			d2y, d2x := n.cellCoord(disc.cell2)
			d1 := n.topo.Dist(cy, cx, d1y, d1x)
			d2 := n.topo.Dist(cy, cx, d2y, d2x)

			var candidate uint16
			switch {
			case max16(d1, d2) <= disc.distance:
				candidate = disc.distance
			case min16(d1, d2) < disc.distance:
				candidate = disc.distance - min16(d1, d2)
			default:
				candidate = 1
			}
			if float32(candidate) > lowerBound {
				lowerBound = float32(candidate)
			}
		}

		newRadius := float32(math.Pow(float64(n.Values[cell]), n.UpdateExponent))
		if n.RespectLowerBound && lowerBound > newRadius {
			newRadius = lowerBound
		}
		newValues[cell] = newRadius
	}
	n.Values = newValues

	n.RadiusMin, n.RadiusMax = n.Values[0], n.Values[0]
	for _, v := range n.Values {
		if v < n.RadiusMin {
			n.RadiusMin = v
		}
		if v > n.RadiusMax {
			n.RadiusMax = v
		}
	}
	return topographicError
}

func max16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

func min16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

// SaveToFile writes the neighborhood using the little-endian binary
// layout of spec.md §6.3.
func (n *Neighborhood) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return semerr.Wrap(semerr.IO, "neighborhood: "+err.Error())
	}
	defer f.Close()
	return n.Encode(f)
}

// Encode writes the neighborhood to w using the little-endian binary
// layout of spec.md §6.3.
func (n *Neighborhood) Encode(w io.Writer) error {
	bw := iobin.NewWriter(w)
	bw.WriteUint8(0)
	bw.WriteUint64AsU64(uint64(n.Height))
	bw.WriteUint64AsU64(uint64(n.Width))
	bw.WriteFloat32Slice(n.Values)
	return bw.Flush()
}

// LoadFromFile reads a neighborhood snapshot previously written by
// SaveToFile. The returned Neighborhood is read-only bookkeeping (no
// topology, decay parameters, or lower bounds attached) suitable for
// inspecting a saved radius map, not for resuming training.
func LoadFromFile(path string) (*Neighborhood, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "neighborhood: "+err.Error())
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a neighborhood snapshot from r.
func Decode(r io.Reader) (*Neighborhood, error) {
	br := iobin.NewReader(r)
	format := br.ReadUint8()
	if err := br.Err(); err != nil {
		return nil, err
	}
	if format != 0 {
		return nil, semerr.Wrapf(semerr.Format, "neighborhood: unsupported format %d", format)
	}
	height := br.ReadUint64AsU64()
	width := br.ReadUint64AsU64()
	if err := br.Err(); err != nil {
		return nil, err
	}
	values := br.ReadFloat32Slice(height * width)
	if err := br.Err(); err != nil {
		return nil, err
	}

	n := &Neighborhood{Height: uint32(height), Width: uint32(width), Values: values}
	if len(values) > 0 {
		n.RadiusMin, n.RadiusMax = values[0], values[0]
		for _, v := range values {
			if v < n.RadiusMin {
				n.RadiusMin = v
			}
			if v > n.RadiusMax {
				n.RadiusMax = v
			}
		}
	}
	return n, nil
}
