package stage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "info_stage/faculty.pdf", ObjectPath("info_stage", "faculty.pdf", false))
	assert.Equal(t, "info_stage/faculty.pdf.gz", ObjectPath("/info_stage/", "faculty.pdf", true))
	assert.Equal(t, "notes.txt", ObjectPath("", "../../etc/notes.txt", false))
	assert.Equal(t, "stage/report.csv", ObjectPath("stage", `C:\Users\me\report.csv`, false))
	assert.Equal(t, "stage/archive.gz", ObjectPath("stage", "archive.gz", true))
	assert.Equal(t, "stage/unnamed", ObjectPath("stage", "", false))
}

func TestEncodeUncompressed(t *testing.T) {
	data := []byte("plain text body")
	out, contentType, err := Encode(data, false)
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.Contains(t, contentType, "text/plain")
}

func TestEncodeCompressed(t *testing.T) {
	data := bytes.Repeat([]byte("faculty list "), 100)
	out, contentType, err := Encode(data, true)
	require.NoError(t, err)
	assert.Equal(t, "application/gzip", contentType)
	assert.Less(t, len(out), len(data))

	zr, err := gzip.NewReader(bytes.NewReader(out))
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestUniqueName(t *testing.T) {
	a := UniqueName("dir/handbook.pdf")
	b := UniqueName("dir/handbook.pdf")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_handbook.pdf"))
	assert.NotContains(t, a, "/")
	assert.True(t, strings.HasSuffix(UniqueName(""), "_unnamed"))
}
