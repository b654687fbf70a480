package coverage_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/choronzon/choronzon/coverage"
)

func record(imageIndex, bbl uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], imageIndex)
	binary.LittleEndian.PutUint64(buf[8:16], bbl)
	return buf
}

// S3: tracer sends header for one image named "libx", one hit, a fatal
// sentinel carrying signal 11 (SIGSEGV).
func TestIngestFatalSignalScenario(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	buf.WriteString("libx")
	buf.Write(record(0, 16))
	buf.Write(record(coverage.SentinelImageIndex, 11))

	result, err := coverage.Ingest(&buf, false)
	require.NoError(t, err)
	require.Equal(t, coverage.FatalSignal, result.Termination.Reason)
	require.EqualValues(t, 11, result.Termination.Code)
	require.True(t, result.Coverage.Contains(coverage.Hit{ImageIndex: 0, BBL: 16}))
	require.Len(t, result.Coverage, 1)
}

func TestIngestTimeoutSentinel(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	buf.WriteString("libx")
	buf.Write(record(0, 32))
	buf.Write(record(coverage.SentinelImageIndex, coverage.TimeoutCode))

	result, err := coverage.Ingest(&buf, true)
	require.NoError(t, err)
	require.Equal(t, coverage.Timeout, result.Termination.Reason)
}

func TestIngestShortReadWithoutTimeoutIsTracerError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	buf.WriteString("libx")
	buf.Write(record(0, 32))
	// stream ends abruptly, no sentinel

	result, err := coverage.Ingest(&buf, false)
	require.NoError(t, err)
	require.Equal(t, coverage.TracerError, result.Termination.Reason)
}

func TestIngestShortReadDuringTimeoutIsTimeout(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	buf.WriteString("libx")
	buf.Write(record(0, 32))

	result, err := coverage.Ingest(&buf, true)
	require.NoError(t, err)
	require.Equal(t, coverage.Timeout, result.Termination.Reason)
}

func TestIngestUnknownImageIndexIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	buf.WriteString("libx")
	buf.Write(record(7, 32))

	_, err := coverage.Ingest(&buf, false)
	require.Error(t, err)
}

func TestFatalExceptionMaskOnOtherPlatform(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0)
	buf.Write(record(coverage.SentinelImageIndex, 0xC0000005))

	result, err := coverage.Ingest(&buf, false)
	require.NoError(t, err)
	require.Equal(t, coverage.FatalSignal, result.Termination.Reason)
}
