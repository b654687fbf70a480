package coverage

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Set is the distinct basic-block hits observed during one trial. Order of
// arrival does not matter once ingestion completes.
type Set map[Hit]struct{}

// Add inserts h into the set.
func (s Set) Add(h Hit) { s[h] = struct{}{} }

// Contains reports whether h was observed.
func (s Set) Contains(h Hit) bool {
	_, ok := s[h]
	return ok
}

// ImageTable resolves an image_index to the name the tracer announced for
// it at startup.
type ImageTable []Image

func (t ImageTable) Name(index uint64) (string, bool) {
	for _, img := range t {
		if img.Index == index {
			return img.Name, true
		}
	}
	return "", false
}

// Result is everything Ingest produces for one trial.
type Result struct {
	Images      ImageTable
	Coverage    Set
	Termination Termination
	// LastHit is the most recent non-sentinel hit observed before the
	// stream ended, used by the scheduler to key a crash to the basic block
	// that was executing when the target terminated fatally.
	LastHit      Hit
	LastHitValid bool
}

// readHeader reads the one-byte image count and each image's length-
// prefixed name.
func readHeader(r *bufio.Reader) (ImageTable, error) {
	count, err := r.ReadByte()
	if err != nil {
		return nil, &Error{Reason: "stream ended before image-count header"}
	}
	table := make(ImageTable, 0, count)
	for i := 0; i < int(count); i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, &Error{Reason: "truncated name length in header"}
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, &Error{Reason: "truncated image name in header"}
		}
		table = append(table, Image{Index: uint64(i), Name: string(name)})
	}
	return table, nil
}

// readRecord reads one 16-byte hit record: image_index then bbl, both
// little-endian uint64.
func readRecord(r *bufio.Reader) (Hit, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Hit{}, err
	}
	return Hit{
		ImageIndex: binary.LittleEndian.Uint64(buf[0:8]),
		BBL:        binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// Ingest reads the tracer's framed stream from r to completion: the
// startup header, then hit records until either a termination sentinel or
// end-of-stream. timedOut tells Ingest whether the engine had already
// signalled the tracer for a timeout flush before this call — it governs
// how a stream that ends without a sentinel is classified.
func Ingest(r io.Reader, timedOut bool) (Result, error) {
	br := bufio.NewReader(r)

	images, err := readHeader(br)
	if err != nil {
		return Result{}, err
	}

	coverage := make(Set)
	var lastHit Hit
	var lastHitValid bool
	for {
		hit, err := readRecord(br)
		if err != nil {
			if err == io.EOF {
				reason := TracerError
				if timedOut {
					reason = Timeout
				}
				return Result{
					Images:       images,
					Coverage:     coverage,
					Termination:  Termination{Reason: reason},
					LastHit:      lastHit,
					LastHitValid: lastHitValid,
				}, nil
			}
			return Result{}, &Error{Reason: "truncated hit record: " + err.Error()}
		}

		if hit.ImageIndex == SentinelImageIndex {
			return Result{
				Images:       images,
				Coverage:     coverage,
				Termination:  classifySentinel(hit.BBL),
				LastHit:      lastHit,
				LastHitValid: lastHitValid,
			}, nil
		}

		if _, ok := images.Name(hit.ImageIndex); !ok {
			return Result{}, &Error{Reason: "hit record references unknown image index"}
		}
		coverage.Add(hit)
		lastHit = hit
		lastHitValid = true
	}
}
