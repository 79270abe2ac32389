package mounttable

import (
	"bufio"
	"io"
	"os"

	defs "hostfs/definitions"
	er "hostfs/errors"
	log "hostfs/logger"
)

// Table is a lazy, ordered sequence of raw mount table lines.
type Table struct {
	scanner *bufio.Scanner
	closer  io.Closer
	path    string
}

// Open probes path and opens it for reading. A failed probe is reported as
// SourceUnavailable, a failed open as SourceOpenError.
func Open(path string) (*Table, error) {
	log.Debugf("Checking to see if %s exists", path)
	if _, err := os.Stat(path); err != nil {
		log.Warnf("Can not probe for currently mounted host file systems: %v", err)
		return nil, er.Wrapf(er.SourceUnavailable, "%s: %v", path, err)
	}

	log.Debugf("Opening %s", path)
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("Could not open %s for reading: %v", path, err)
		return nil, er.Wrapf(er.SourceOpenError, "%s: %v", path, err)
	}

	t := NewTable(f)
	t.closer = f
	t.path = path
	return t, nil
}

// NewTable reads mount table lines from r. The caller owns r.
func NewTable(r io.Reader) *Table {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, defs.MaxMountLineLen), defs.MaxMountLineLen)
	return &Table{scanner: sc}
}

// Next advances to the next line. It returns false at the end of the table
// or on a read error, which is then reported by Err.
func (t *Table) Next() bool {
	return t.scanner.Scan()
}

// Line returns the current line without its trailing newline.
func (t *Table) Line() string {
	return t.scanner.Text()
}

func (t *Table) Err() error {
	if err := t.scanner.Err(); err != nil {
		return er.Wrapf(er.SourceReadError, "%s: %v", t.path, err)
	}
	return nil
}

func (t *Table) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
