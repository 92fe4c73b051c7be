// Package catalog discovers and orders migration scripts.
//
// A migration script is named NNNN-description.ext where NNNN is a 4-digit
// zero-padded ordinal and ext selects the execution strategy: .sql scripts
// run as a declarative statement batch, .py and .sh scripts run as external
// processes. The catalog is append-only; applied scripts must never be
// edited or renumbered.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Kind classifies how a script is executed.
type Kind string

const (
	// KindSQL marks a declarative statement batch.
	KindSQL Kind = "sql"
	// KindPython marks a script run via the python3 interpreter.
	KindPython Kind = "python"
	// KindShell marks a script run via sh.
	KindShell Kind = "shell"
)

// Script is a reference to one discovered migration script.
type Script struct {
	Ordinal int
	Name    string
	Path    string
	Kind    Kind
}

// scriptName matches well-formed migration filenames: exactly 4 digits, a
// dash, a description, and a supported extension.
var scriptName = regexp.MustCompile(`^(\d{4})-.+\.(sql|py|sh)$`)

// nearMiss matches filenames that look like migrations (numeric prefix,
// dash, supported extension) but whose ordinal is not exactly 4 digits.
// These are rejected loudly instead of being silently skipped.
var nearMiss = regexp.MustCompile(`^(\d+)-.+\.(sql|py|sh)$`)

// NamingError reports a file that almost matches the migration naming rule.
type NamingError struct {
	Name string
}

func (e *NamingError) Error() string {
	return fmt.Sprintf("invalid migration filename %q: ordinal must be exactly 4 digits", e.Name)
}

// DuplicateOrdinalError reports two scripts sharing an ordinal.
type DuplicateOrdinalError struct {
	Ordinal int
	First   string
	Second  string
}

func (e *DuplicateOrdinalError) Error() string {
	return fmt.Sprintf("duplicate migration ordinal %04d: %s and %s", e.Ordinal, e.First, e.Second)
}

// Discover scans one directory level for migration scripts and returns them
// ordered by ascending ordinal. Files that do not resemble migrations at all
// (adapter modules, READMEs) are ignored; near-miss names and duplicate
// ordinals fail loudly before any script could run. A missing directory is
// an empty catalog.
func Discover(dir string) ([]Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byOrdinal := make(map[int]Script)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		m := scriptName.FindStringSubmatch(name)
		if m == nil {
			if nearMiss.MatchString(name) {
				return nil, &NamingError{Name: name}
			}
			continue
		}

		var ordinal int
		fmt.Sscanf(m[1], "%d", &ordinal)

		script := Script{
			Ordinal: ordinal,
			Name:    name,
			Path:    filepath.Join(dir, name),
			Kind:    kindForExtension(m[2]),
		}
		if prev, ok := byOrdinal[ordinal]; ok {
			return nil, &DuplicateOrdinalError{Ordinal: ordinal, First: prev.Name, Second: name}
		}
		byOrdinal[ordinal] = script
	}

	scripts := make([]Script, 0, len(byOrdinal))
	for _, script := range byOrdinal {
		scripts = append(scripts, script)
	}
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Ordinal < scripts[j].Ordinal
	})
	return scripts, nil
}

// Pending filters scripts to those with an ordinal strictly greater than
// currentVersion. The input already being sorted, the result is too.
func Pending(scripts []Script, currentVersion int) []Script {
	var pending []Script
	for _, script := range scripts {
		if script.Ordinal > currentVersion {
			pending = append(pending, script)
		}
	}
	return pending
}

func kindForExtension(ext string) Kind {
	switch ext {
	case "sql":
		return KindSQL
	case "py":
		return KindPython
	default:
		return KindShell
	}
}
