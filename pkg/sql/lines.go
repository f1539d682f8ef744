package sql

import (
	"bufio"
	"io"
	"strings"
)

// MaxValueLineBytes bounds a single line of an uploaded value list.
const MaxValueLineBytes = 1 << 20

const utf8BOM = "\uFEFF"

// ReadValueLines splits an uploaded value list or mass file into lines: each
// trimmed, blank lines dropped. A leading UTF-8 byte order mark is ignored.
func ReadValueLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxValueLineBytes)

	var lines []string
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, utf8BOM)
			first = false
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
