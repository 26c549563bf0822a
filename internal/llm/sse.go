package llm

import (
	"bytes"
	"io"
	"strings"
)

const readSize = 4096

// LineReader splits a raw byte stream into lines. A fragment that arrives
// without its terminating newline is carried over to the next read; the
// final unterminated fragment is returned once the source hits EOF.
type LineReader struct {
	r       io.Reader
	carry   []byte
	scratch []byte
	err     error
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, scratch: make([]byte, readSize)}
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
// It returns the source's error (io.EOF at the end) once every buffered
// byte has been delivered.
func (l *LineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.carry, '\n'); i >= 0 {
			line := string(bytes.TrimSuffix(l.carry[:i], []byte("\r")))
			l.carry = append(l.carry[:0], l.carry[i+1:]...)
			return line, nil
		}
		if l.err != nil {
			if len(l.carry) > 0 {
				line := string(bytes.TrimSuffix(l.carry, []byte("\r")))
				l.carry = l.carry[:0]
				return line, nil
			}
			return "", l.err
		}
		n, err := l.r.Read(l.scratch)
		l.carry = append(l.carry, l.scratch[:n]...)
		if err != nil {
			l.err = err
		}
	}
}

// DataPayload extracts the payload of an SSE "data:" line. Other fields
// (event:, id:, comments) and blank separator lines report false.
func DataPayload(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	rest = strings.TrimPrefix(rest, " ")
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}
