// Package persist writes and restores a campaign's checkpoint: the corpus,
// the global coverage map, operator weights, the PRNG state and the crash
// set, in a layout a resumed or replaying run can reload exactly.
//
// Framed records use one outer framing: a magic number, a version, a
// 16-bit flags field, a 64-bit payload length, a BLAKE2b-256 hash of the
// payload and then the payload itself, so a truncated or corrupted framed
// file is detected at load time rather than silently misparsed. The
// coverage map and the PRNG state are written as raw, unframed bytes.
package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/corpus"
	"github.com/choronzon/choronzon/coverage"
	"github.com/choronzon/choronzon/fitness"
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/rng"
)

const (
	magic   = "CHRZ"
	version = uint16(1)
)

// Store is a Checkpointer backed by a directory on disk, laid out as:
//
//	<dir>/corpus/<id>.bin        one framed, CBOR-encoded chromosome per member
//	<dir>/corpus/index.json      a flat listing for tools that don't want to decode every member
//	<dir>/coverage.map           fixed-width (image_index, bbl, count) triples
//	<dir>/prng.state             the raw PCG state
//	<dir>/engine.state           framed CBOR: generation, capacity, operator weights
//	<dir>/crashes/<img>_<bbl>.bin  one framed chromosome per recorded crash site
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir. dir is created on first
// Checkpoint if it does not already exist.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

type indexEntry struct {
	ID         chromo.ID `json:"id"`
	Fitness    float64   `json:"fitness"`
	Generation int       `json:"generation"`
	Operator   string    `json:"operator,omitempty"`
}

type engineState struct {
	Generation          int
	Capacity            int
	MutatorWeights      map[string]float64
	RecombinatorWeights map[string]float64
}

// Checkpoint implements scheduler.Checkpointer. It overwrites the corpus
// and crash directories wholesale on every call: a checkpoint is a
// snapshot, not an incremental log, so stale members from a prior,
// larger corpus must not survive a shrink.
func (s *Store) Checkpoint(
	c *corpus.Corpus,
	g *fitness.Map,
	mutatorWeights, recombinatorWeights map[string]float64,
	r *rng.Source,
	generation int,
) error {
	corpusDir := filepath.Join(s.Dir, "corpus")
	crashesDir := filepath.Join(s.Dir, "crashes")
	if err := resetDir(corpusDir); err != nil {
		return fmt.Errorf("persist: resetting corpus dir: %w", err)
	}
	if err := resetDir(crashesDir); err != nil {
		return fmt.Errorf("persist: resetting crashes dir: %w", err)
	}

	members := c.All()
	index := make([]indexEntry, 0, len(members))
	for _, ch := range members {
		if err := writeChromosome(filepath.Join(corpusDir, string(ch.ID)+".bin"), ch); err != nil {
			return fmt.Errorf("persist: writing corpus member %s: %w", ch.ID, err)
		}
		op := ""
		if n := len(ch.OperatorChain); n > 0 {
			op = ch.OperatorChain[n-1]
		}
		index = append(index, indexEntry{ID: ch.ID, Fitness: ch.Fitness, Generation: ch.Generation, Operator: op})
	}
	indexData, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encoding corpus index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(corpusDir, "index.json"), indexData, 0o644); err != nil {
		return fmt.Errorf("persist: writing corpus index: %w", err)
	}

	// Crashes is read without locking c.mu: Checkpoint runs between
	// trials, when nothing else is mutating the corpus.
	for hit, ch := range c.Crashes {
		name := fmt.Sprintf("%d_%d.bin", hit.ImageIndex, hit.BBL)
		if err := writeChromosome(filepath.Join(crashesDir, name), ch); err != nil {
			return fmt.Errorf("persist: writing crash %s: %w", name, err)
		}
	}

	if err := writeCoverageMap(filepath.Join(s.Dir, "coverage.map"), g); err != nil {
		return fmt.Errorf("persist: writing coverage map: %w", err)
	}

	prngState, err := r.MarshalBinary()
	if err != nil {
		return fmt.Errorf("persist: marshaling prng state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, "prng.state"), prngState, 0o644); err != nil {
		return fmt.Errorf("persist: writing prng state: %w", err)
	}

	state := engineState{
		Generation:          generation,
		Capacity:            c.Capacity,
		MutatorWeights:      mutatorWeights,
		RecombinatorWeights: recombinatorWeights,
	}
	stateData, err := cbor.Marshal(state)
	if err != nil {
		return fmt.Errorf("persist: encoding engine state: %w", err)
	}
	if err := writeFile(filepath.Join(s.Dir, "engine.state"), stateData); err != nil {
		return fmt.Errorf("persist: writing engine state: %w", err)
	}
	return nil
}

// Restored is everything Restore reconstructs from a checkpoint directory.
type Restored struct {
	Corpus              *corpus.Corpus
	Coverage            *fitness.Map
	MutatorWeights      map[string]float64
	RecombinatorWeights map[string]float64
	RNG                 *rng.Source
	Generation          int
}

// Restore reconstructs a campaign's state from a checkpoint directory
// written by Checkpoint. plugin re-serializes each restored chromosome so
// the corpus's duplicate-bytes index can be rebuilt; it must be the same
// plugin the campaign was running when the checkpoint was written.
func Restore(dir string, plugin format.Plugin) (*Restored, error) {
	stateData, err := readFile(filepath.Join(dir, "engine.state"))
	if err != nil {
		return nil, fmt.Errorf("persist: reading engine state: %w", err)
	}
	var state engineState
	if err := cbor.Unmarshal(stateData, &state); err != nil {
		return nil, fmt.Errorf("persist: decoding engine state: %w", err)
	}

	c := corpus.New(state.Capacity)
	corpusDir := filepath.Join(dir, "corpus")
	matches, err := filepath.Glob(filepath.Join(corpusDir, "*.bin"))
	if err != nil {
		return nil, fmt.Errorf("persist: listing corpus members: %w", err)
	}
	for _, path := range matches {
		ch, err := readChromosome(path)
		if err != nil {
			return nil, fmt.Errorf("persist: reading corpus member %s: %w", path, err)
		}
		serialized, err := plugin.Serialize(ch)
		if err != nil {
			return nil, fmt.Errorf("persist: re-serializing restored member %s: %w", ch.ID, err)
		}
		// The member's original per-trial coverage set is not persisted
		// independently of the global coverage map; Seed records an empty
		// set since nothing downstream of restore reads an entry's
		// coverage again (ranking is driven by the already-restored
		// Fitness field).
		c.Seed(ch, serialized, coverage.Set{})
	}

	crashesDir := filepath.Join(dir, "crashes")
	crashMatches, err := filepath.Glob(filepath.Join(crashesDir, "*.bin"))
	if err != nil {
		return nil, fmt.Errorf("persist: listing crashes: %w", err)
	}
	for _, path := range crashMatches {
		hit, err := parseCrashFilename(filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("persist: %w", err)
		}
		ch, err := readChromosome(path)
		if err != nil {
			return nil, fmt.Errorf("persist: reading crash %s: %w", path, err)
		}
		c.RecordCrash(hit, ch)
	}

	g := fitness.NewMap()
	records, err := readCoverageMap(filepath.Join(dir, "coverage.map"))
	if err != nil {
		return nil, fmt.Errorf("persist: reading coverage map: %w", err)
	}
	g.Restore(records)

	prngData, err := os.ReadFile(filepath.Join(dir, "prng.state"))
	if err != nil {
		return nil, fmt.Errorf("persist: reading prng state: %w", err)
	}
	r := &rng.Source{}
	if err := r.UnmarshalBinary(prngData); err != nil {
		return nil, fmt.Errorf("persist: restoring prng state: %w", err)
	}

	return &Restored{
		Corpus:              c,
		Coverage:            g,
		MutatorWeights:      state.MutatorWeights,
		RecombinatorWeights: state.RecombinatorWeights,
		RNG:                 r,
		Generation:          state.Generation,
	}, nil
}

func writeChromosome(path string, ch *chromo.Chromosome) error {
	data, err := cbor.Marshal(ch)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func readChromosome(path string) (*chromo.Chromosome, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var ch chromo.Chromosome
	if err := cbor.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("decoding chromosome: %w", err)
	}
	return &ch, nil
}

// writeFile applies the framing (magic, version, flags, length, hash)
// around payload and writes the result to path.
func writeFile(path string, payload []byte) error {
	hash := blake2b.Sum256(payload)

	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.LittleEndian, version)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // flags, reserved
	binary.Write(&buf, binary.LittleEndian, uint64(len(payload)))
	buf.Write(hash[:])
	buf.Write(payload)

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// readFile validates and strips the framing written by writeFile.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	const preambleLen = 4 + 2 + 2 + 8 + 32
	if len(data) < preambleLen {
		return nil, fmt.Errorf("%s: truncated checkpoint record", path)
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("%s: bad magic", path)
	}
	gotVersion := binary.LittleEndian.Uint16(data[4:6])
	if gotVersion != version {
		return nil, fmt.Errorf("%s: unsupported checkpoint version %d", path, gotVersion)
	}
	payloadLen := binary.LittleEndian.Uint64(data[8:16])
	wantHash := data[16:48]
	payload := data[48:]
	if uint64(len(payload)) != payloadLen {
		return nil, fmt.Errorf("%s: length mismatch", path)
	}
	gotHash := blake2b.Sum256(payload)
	if !bytes.Equal(gotHash[:], wantHash) {
		return nil, fmt.Errorf("%s: checksum mismatch, checkpoint is corrupt", path)
	}
	return payload, nil
}

func writeCoverageMap(path string, g *fitness.Map) error {
	records := g.Snapshot()
	sort.Slice(records, func(i, j int) bool {
		if records[i].Hit.ImageIndex != records[j].Hit.ImageIndex {
			return records[i].Hit.ImageIndex < records[j].Hit.ImageIndex
		}
		return records[i].Hit.BBL < records[j].Hit.BBL
	})

	var buf bytes.Buffer
	for _, rec := range records {
		binary.Write(&buf, binary.LittleEndian, rec.Hit.ImageIndex)
		binary.Write(&buf, binary.LittleEndian, rec.Hit.BBL)
		binary.Write(&buf, binary.LittleEndian, uint64(rec.Count))
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readCoverageMap(path string) ([]fitness.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	const recordLen = 24
	if len(data)%recordLen != 0 {
		return nil, fmt.Errorf("%s: length %d is not a multiple of %d bytes", path, len(data), recordLen)
	}

	records := make([]fitness.Record, 0, len(data)/recordLen)
	for off := 0; off < len(data); off += recordLen {
		rec := data[off : off+recordLen]
		records = append(records, fitness.Record{
			Hit: coverage.Hit{
				ImageIndex: binary.LittleEndian.Uint64(rec[0:8]),
				BBL:        binary.LittleEndian.Uint64(rec[8:16]),
			},
			Count: int(binary.LittleEndian.Uint64(rec[16:24])),
		})
	}
	return records, nil
}

func parseCrashFilename(name string) (coverage.Hit, error) {
	base := strings.TrimSuffix(name, ".bin")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return coverage.Hit{}, fmt.Errorf("malformed crash filename %q", name)
	}
	imageIndex, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return coverage.Hit{}, fmt.Errorf("malformed crash filename %q: %w", name, err)
	}
	bbl, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return coverage.Hit{}, fmt.Errorf("malformed crash filename %q: %w", name, err)
	}
	return coverage.Hit{ImageIndex: imageIndex, BBL: bbl}, nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
