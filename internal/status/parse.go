// internal/status/parse.go
package status

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrIO means the status file could not be opened or read.
	ErrIO = errors.New("status: io error")

	// ErrParse means the file could not be scanned to the end.
	// Malformed records never produce it; they are skipped and counted.
	ErrParse = errors.New("status: parse error")
)

// Load reads and parses the status file at path.
// It fails only if the file is unreadable; bad records are skipped.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	snap, err := Parse(f, path)
	if err != nil {
		return nil, err
	}
	snap.ModTime = fi.ModTime()
	snap.Size = fi.Size()
	return snap, nil
}

// Parse builds a snapshot from r. Two record grammars are accepted and may
// be mixed: flat lines "id,state[,lastCheckUnix[,output]]" and collector
// stanzas "servicestatus { key=value ... }".
func Parse(r io.Reader, path string) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	records := make(map[string]Record)
	var stats Stats

	accept := func(rec Record, ok bool) {
		if !ok {
			stats.Skipped++
			return
		}
		stats.Valid++
		records[rec.ServiceID] = rec
	}

	var st *stanza

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		// ---- inside a stanza ----
		if st != nil {
			if line == "}" {
				if st.wanted() {
					accept(st.record())
				}
				st = nil
				continue
			}
			if line == "" {
				continue
			}
			if key, _, ok := strings.Cut(line, "="); !ok || !isIdent(strings.TrimSpace(key)) {
				// not a key=value pair: the opener was junk or the closing
				// brace is missing. Drop the stanza and rescan the line.
				stats.Skipped++
				st = nil
			} else {
				st.set(line)
				continue
			}
		}

		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}

		// ---- stanza opener ----
		if kind, ok := stanzaOpener(line); ok {
			st = &stanza{kind: kind, fields: make(map[string]string)}
			continue
		}

		accept(parseLine(line))
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	// An unterminated stanza at EOF is a truncated write by the collector.
	if st != nil && st.wanted() {
		stats.Skipped++
	}

	return newSnapshot(path, records, stats), nil
}

// parseLine parses one flat record.
func parseLine(line string) (Record, bool) {
	parts := strings.SplitN(line, FieldSeparator, 4)
	if len(parts) < 2 {
		return Record{}, false
	}

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return Record{}, false
	}

	code, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || code < 0 || !State(code).Valid() {
		return Record{}, false
	}

	rec := Record{ServiceID: id, State: State(code)}

	if len(parts) >= 3 {
		ts := strings.TrimSpace(parts[2])
		if ts != "" {
			sec, err := strconv.ParseInt(ts, 10, 64)
			if err != nil || sec < 0 {
				return Record{}, false
			}
			rec.LastCheck = time.Unix(sec, 0)
		}
	}
	if len(parts) == 4 {
		rec.Output = strings.TrimSpace(parts[3])
	}

	return rec, true
}

// stanzaOpener matches "kind {" where kind is a single identifier.
// Flat records that happen to end in "{" never match: they carry a comma.
func stanzaOpener(line string) (string, bool) {
	rest, ok := strings.CutSuffix(line, "{")
	if !ok {
		return "", false
	}
	kind := strings.TrimSpace(rest)
	if !isIdent(kind) {
		return "", false
	}
	return kind, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// stanza accumulates key=value pairs between "kind {" and "}".
type stanza struct {
	kind   string
	fields map[string]string
}

func (s *stanza) set(line string) {
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	s.fields[strings.TrimSpace(k)] = v
}

// wanted reports whether the stanza describes a host or service at all.
func (s *stanza) wanted() bool {
	return s.kind == stanzaService || s.kind == stanzaHost
}

func (s *stanza) record() (Record, bool) {
	host := strings.TrimSpace(s.fields["host_name"])
	if host == "" {
		return Record{}, false
	}

	code, err := strconv.Atoi(strings.TrimSpace(s.fields["current_state"]))
	if err != nil {
		return Record{}, false
	}

	rec := Record{
		ServiceID: host,
		Output:    strings.TrimSpace(s.fields["plugin_output"]),
	}

	switch s.kind {
	case stanzaService:
		desc := strings.TrimSpace(s.fields["service_description"])
		if desc == "" || code < 0 || !State(code).Valid() {
			return Record{}, false
		}
		rec.ServiceID = host + ServiceIDSeparator + desc
		rec.State = State(code)

	case stanzaHost:
		st, ok := hostState(code)
		if !ok {
			return Record{}, false
		}
		rec.State = st
	}

	if ts := strings.TrimSpace(s.fields["last_check"]); ts != "" {
		if sec, err := strconv.ParseInt(ts, 10, 64); err == nil && sec > 0 {
			rec.LastCheck = time.Unix(sec, 0)
		}
	}

	return rec, true
}
