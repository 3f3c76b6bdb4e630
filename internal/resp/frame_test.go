package resp

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, wire string) Frame {
	t.Helper()
	r := bufio.NewReader(bytes.NewBufferString(wire))
	f, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, wire, string(Encode(f)))
	return f
}

func TestReadFrameSimple(t *testing.T) {
	f := roundTrip(t, "+PONG\r\n")
	assert.Equal(t, Simple, f.Kind)
	assert.Equal(t, "PONG", f.Str)
}

func TestReadFrameError(t *testing.T) {
	f := roundTrip(t, "-ERR boom\r\n")
	assert.Equal(t, Error, f.Kind)
	assert.Equal(t, "ERR boom", f.Str)
}

func TestReadFrameInteger(t *testing.T) {
	f := roundTrip(t, ":1000\r\n")
	assert.Equal(t, Integer, f.Kind)
	assert.EqualValues(t, 1000, f.Int)
}

func TestReadFrameBulk(t *testing.T) {
	f := roundTrip(t, "$5\r\nhello\r\n")
	assert.Equal(t, Bulk, f.Kind)
	assert.Equal(t, "hello", string(f.Bulk))
}

func TestReadFrameNullBulk(t *testing.T) {
	f := roundTrip(t, "$-1\r\n")
	assert.True(t, f.Null)
}

func TestReadFrameArray(t *testing.T) {
	f := roundTrip(t, "*2\r\n$4\r\nPING\r\n$2\r\nhi\r\n")
	require.Len(t, f.Items, 2)
	argv, err := AsBulkStrings(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "hi"}, argv)
}

func TestReadFrameNullArray(t *testing.T) {
	f := roundTrip(t, "*-1\r\n")
	assert.True(t, f.Null)
}

func TestReadFrameCleanEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(""))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedIsProtocolError(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("$5\r\nhel"))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestWireLenMatchesEncodedLength(t *testing.T) {
	f := ArrayOf(BulkStringOf("SET"), BulkStringOf("k"), BulkStringOf("v"))
	assert.Equal(t, len(Encode(f)), WireLen(f))
}

func TestWriteContentFileHasNoTrailingCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteContentFile(w, []byte{0x01, 0x02, 0x03}))
	assert.Equal(t, "$3\r\n\x01\x02\x03", buf.String())
}

func TestReadFileConsumesExactBytes(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("\x01\x02\x03REST"))
	data, err := ReadFile(r, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
	rest, _ := r.ReadString(0)
	assert.Equal(t, "REST", rest)
}
