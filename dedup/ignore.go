package dedup

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// systemDirs are skipped when Config.SkipSystem is set and a root
// contains them (scanning "/" being the usual case).
var systemDirs = map[string]struct{}{
	"proc": {}, "sys": {}, "dev": {}, "run": {},
	"lost+found": {}, "System Volume Information": {}, "$RECYCLE.BIN": {},
}

// IgnoreRules holds exclusion globs from config plus an optional
// .dupeignore file. Entries matching any pattern are excluded from
// enumeration.
type IgnoreRules struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob    string
	dirOnly bool // trailing / in the source pattern
}

// NewIgnoreRules builds rules from raw patterns (config-supplied).
func NewIgnoreRules(patterns []string) *IgnoreRules {
	ir := &IgnoreRules{}
	for _, p := range patterns {
		ir.add(p)
	}
	return ir
}

// LoadIgnoreFile reads additional patterns from a .dupeignore file.
// A missing or unreadable file leaves the rules unchanged.
func (ir *IgnoreRules) LoadIgnoreFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ir.add(line)
	}
}

func (ir *IgnoreRules) add(pattern string) {
	p := ignorePattern{glob: pattern}
	if strings.HasSuffix(pattern, "/") {
		p.glob = strings.TrimSuffix(pattern, "/")
		p.dirOnly = true
	}
	ir.patterns = append(ir.patterns, p)
}

// Matches reports whether the given entry name is excluded.
// dirOnly patterns require isDir to be true.
func (ir *IgnoreRules) Matches(name string, isDir bool) bool {
	if ir == nil {
		return false
	}
	for _, p := range ir.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matched, _ := filepath.Match(p.glob, name); matched {
			return true
		}
	}
	return false
}

// isSystemDir reports whether name is a well-known system directory.
func isSystemDir(name string) bool {
	_, ok := systemDirs[name]
	return ok
}
