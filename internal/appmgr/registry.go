package appmgr

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// AppEntry maps a dense, insertion-ordered, non-zero app id to an opaque
// module locator (a path, URL, or asset key — resolved by whatever loader
// the host port wires in).
type AppEntry struct {
	ID   uint32
	Path string
}

// Registry is the ordered id -> locator table. Id 0 is reserved to mean
// "the launcher" and never appears as an entry.
type Registry struct {
	entries []AppEntry
}

// Add appends a new entry, assigning it the next dense id.
func (r *Registry) Add(path string) uint32 {
	id := uint32(len(r.entries) + 1)
	r.entries = append(r.entries, AppEntry{ID: id, Path: path})
	return id
}

// Lookup returns the entry for id, or ok=false if id is 0 or unknown.
func (r *Registry) Lookup(id uint32) (AppEntry, bool) {
	if id == 0 || int(id) > len(r.entries) {
		return AppEntry{}, false
	}
	return r.entries[id-1], true
}

// Entries returns the registry in id order.
func (r *Registry) Entries() []AppEntry {
	return append([]AppEntry(nil), r.entries...)
}

// ParseManifest reads the plain-text "id<TAB>path" app registry manifest:
// one app per line, blank lines and lines starting with '#' ignored. Ids
// in the file are advisory documentation only — Add still assigns dense
// ids in file order, so the manifest must already be in id order.
func ParseManifest(text string) (*Registry, error) {
	reg := &Registry{}
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("appmgr: manifest line %d: expected \"id<TAB>path\"", lineNo)
		}
		if _, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32); err != nil {
			return nil, fmt.Errorf("appmgr: manifest line %d: bad id: %w", lineNo, err)
		}
		reg.Add(strings.TrimSpace(parts[1]))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("appmgr: reading manifest: %w", err)
	}
	return reg, nil
}
