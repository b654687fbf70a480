// Package pngformat is the reference file-format plug-in: a PNG parser and
// serializer implementing format.Plugin. It exists to exercise the engine
// end to end and to demonstrate what a plug-in author's Deserialize,
// Serialize and Admissible need to guarantee.
//
// A PNG chromosome's root is a single FILE gene with one child per chunk,
// after a leading SIG child, in the order the file contains them (for a
// minimal file: SIG, IHDR, IDAT, IEND).
// SIG is the fixed 8-byte file signature; it carries FlagEssential and
// FlagLeaf but not FlagStructural, so recombinators that operate only on
// structural children never reorder, duplicate or remove it. Every other
// chunk carries FlagStructural and nothing else, making chunk order,
// count and content entirely fair game for mutation and recombination —
// producing exactly the kind of malformed-but-signature-intact file a
// format fuzzer exists to generate.
package pngformat

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/gene"
)

// Signature is the fixed 8-byte PNG file signature.
var Signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	kindSig = "SIG"

	chunkTypeLen   = 4
	chunkLengthLen = 4
	chunkCRCLen    = 4
	chunkHeaderLen = chunkLengthLen + chunkTypeLen
)

// Plugin implements format.Plugin for the PNG container format.
type Plugin struct{}

// Name implements format.Plugin.
func (Plugin) Name() string { return "png" }

// Deserialize implements format.Plugin. It accepts any well-formed PNG
// stream: a valid signature followed by a sequence of length-prefixed,
// CRC-checked chunks ending with IEND.
func (Plugin) Deserialize(data []byte) (*chromo.Chromosome, error) {
	if len(data) < len(Signature) {
		return nil, &format.ParseError{Format: "png", Reason: "file shorter than signature", Offset: 0}
	}
	if !bytes.Equal(data[:len(Signature)], Signature[:]) {
		return nil, &format.ParseError{Format: "png", Reason: "bad PNG signature", Offset: 0}
	}

	sig := gene.New(kindSig, data[:len(Signature)], nil, gene.FlagEssential|gene.FlagLeaf)
	children := []*gene.Gene{sig}

	offset := len(Signature)
	sawIEND := false
	for offset < len(data) {
		chunk, consumed, err := parseChunk(data[offset:], offset)
		if err != nil {
			return nil, err
		}
		children = append(children, chunk)
		offset += consumed
		if chunk.Kind == "IEND" {
			sawIEND = true
			break
		}
	}
	if !sawIEND {
		return nil, &format.ParseError{Format: "png", Reason: "missing IEND chunk", Offset: offset}
	}
	if offset != len(data) {
		return nil, &format.ParseError{Format: "png", Reason: "trailing data after IEND", Offset: offset}
	}

	root := gene.New("FILE", nil, children, gene.FlagStructural)
	return &chromo.Chromosome{Root: root}, nil
}

func parseChunk(data []byte, offset int) (*gene.Gene, int, error) {
	if len(data) < chunkHeaderLen {
		return nil, 0, &format.ParseError{Format: "png", Reason: "truncated chunk header", Offset: offset}
	}
	length := be32(data[0:4])
	if uint64(chunkHeaderLen)+uint64(length)+uint64(chunkCRCLen) > uint64(len(data)) {
		return nil, 0, &format.ParseError{Format: "png", Reason: "chunk length exceeds remaining data", Offset: offset}
	}
	kind := string(data[4:8])
	if !validChunkType(kind) {
		return nil, 0, &format.ParseError{Format: "png", Reason: fmt.Sprintf("invalid chunk type %q", kind), Offset: offset}
	}
	payload := data[chunkHeaderLen : chunkHeaderLen+length]
	wantCRC := be32(data[chunkHeaderLen+length : chunkHeaderLen+length+chunkCRCLen])
	gotCRC := crc32.ChecksumIEEE(data[4 : chunkHeaderLen+length])
	if gotCRC != wantCRC {
		return nil, 0, &format.ParseError{Format: "png", Reason: fmt.Sprintf("CRC mismatch in %s chunk", kind), Offset: offset}
	}

	g := gene.New(kind, payload, nil, gene.FlagStructural)
	return g, chunkHeaderLen + int(length) + chunkCRCLen, nil
}

func validChunkType(kind string) bool {
	if len(kind) != chunkTypeLen {
		return false
	}
	for _, r := range kind {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// Serialize implements format.Plugin. It recomputes every chunk's length
// and CRC from the gene's current payload and kind, so a mutated payload
// always produces a structurally well-formed (if semantically bogus)
// chunk stream; a round-tripped, unmutated tree reproduces its input
// byte-for-byte.
func (Plugin) Serialize(c *chromo.Chromosome) ([]byte, error) {
	root := c.Root
	if root == nil || len(root.Children) == 0 {
		return nil, &format.SerializationError{Format: "png", Reason: "empty tree"}
	}
	sig := root.Children[0]
	if sig.Kind != kindSig || len(sig.Payload) != len(Signature) {
		return nil, &format.SerializationError{Format: "png", Reason: "root's first child must be an 8-byte SIG gene"}
	}

	var buf bytes.Buffer
	buf.Write(sig.Payload)

	for _, chunk := range root.Children[1:] {
		if !validChunkType(chunk.Kind) {
			return nil, &format.SerializationError{Format: "png", Reason: fmt.Sprintf("invalid chunk type %q", chunk.Kind)}
		}
		if len(chunk.Payload) > 0x7FFFFFFF {
			return nil, &format.SerializationError{Format: "png", Reason: "chunk payload too large"}
		}
		writeBE32(&buf, uint32(len(chunk.Payload)))
		buf.WriteString(chunk.Kind)
		buf.Write(chunk.Payload)
		crc := crc32.ChecksumIEEE(append([]byte(chunk.Kind), chunk.Payload...))
		writeBE32(&buf, crc)
	}
	return buf.Bytes(), nil
}

// Admissible implements format.Plugin. SIG is only admissible as the
// root's first child; any four-letter chunk type is admissible anywhere
// else under FILE. Chunks never carry children of their own.
func (Plugin) Admissible(parentKind, childKind string, position int) bool {
	if parentKind != "FILE" {
		return false
	}
	if childKind == kindSig {
		return position == 0
	}
	return validChunkType(childKind) && position >= 1
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func writeBE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}
