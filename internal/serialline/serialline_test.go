package serialline

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) ([]string, []error) {
	t.Helper()
	var lines []string
	var errs []error
	for i := 0; i < 100; i++ {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return lines, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines = append(lines, line)
	}
	t.Fatalf("reader did not reach EOF")
	return nil, nil
}

func TestReader_TrimsAndSkipsBlank(t *testing.T) {
	in := "$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/\r\n\r\n   \n$GPGGA,1\n"
	lines, errs := readAll(t, NewReader(strings.NewReader(in), 0))

	assert.Empty(t, errs)
	assert.Equal(t, []string{
		"$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/",
		"$GPGGA,1",
	}, lines)
}

func TestReader_DropsInvalidUTF8(t *testing.T) {
	in := "$$CRC\xff\xfe9396,JA1ABC>API705\n"
	lines, errs := readAll(t, NewReader(strings.NewReader(in), 0))

	assert.Empty(t, errs)
	assert.Equal(t, []string{"$$CRC9396,JA1ABC>API705"}, lines)
}

func TestReader_FinalLineWithoutNewline(t *testing.T) {
	lines, errs := readAll(t, NewReader(strings.NewReader("first\nlast"), 0))

	assert.Empty(t, errs)
	assert.Equal(t, []string{"first", "last"}, lines)
}

func TestReader_LineTooLongIsSkipped(t *testing.T) {
	in := "short\n" + strings.Repeat("x", 64) + "\nafter\n"
	r := NewReader(strings.NewReader(in), 16)

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "short", line)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "after", line)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LongerThanBufio(t *testing.T) {
	// exceeds bufio's default 4096 byte buffer but not the limit
	long := strings.Repeat("y", 5000)
	lines, errs := readAll(t, NewReader(strings.NewReader(long+"\nz\n"), 8192))

	assert.Empty(t, errs)
	assert.Equal(t, []string{long, "z"}, lines)
}

func TestReader_ExactLimit(t *testing.T) {
	lines, errs := readAll(t, NewReader(strings.NewReader("abcd\nabcde\n"), 4))

	assert.Equal(t, []string{"abcd"}, lines)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrLineTooLong)
}
