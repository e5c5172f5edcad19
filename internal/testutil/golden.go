// Package testutil holds helpers shared by claudewatch tests.
package testutil

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// update rewrites golden files instead of comparing: go test ./... -update
var update = flag.Bool("update", false, "update golden files")

// TB is the subset of testing.TB the golden helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Logf(format string, args ...any)
}

var _ TB = (testing.TB)(nil)

// AssertGolden compares got with testdata/<name>. Line endings are normalized
// so goldens checked out with CRLF still match.
func AssertGolden(t TB, got, name string) {
	t.Helper()

	path := filepath.Join("testdata", name)

	if *update {
		writeGolden(t, path, got)
		return
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("golden file %s is missing; run with -update to create it", path)
		return
	}

	if err != nil {
		t.Fatalf("read golden file %s: %v", path, err)
		return
	}

	want := normalizeNewlines(string(data))
	got = normalizeNewlines(got)

	if got == want {
		return
	}

	line, g, w := firstDifference(got, want)
	t.Errorf("%s differs at line %d\n  got:  %q\n  want: %q\n\nfull output:\n%s\nrun with -update to refresh golden files",
		path, line, g, w, got)
}

func writeGolden(t TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
		return
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write golden file %s: %v", path, err)
		return
	}

	t.Logf("updated %s", path)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// firstDifference returns the 1-based number of the first line where got and
// want disagree, with both versions of that line. A difference only in the
// final newline is reported on the last line.
func firstDifference(got, want string) (int, string, string) {
	g := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	w := strings.Split(strings.TrimSuffix(want, "\n"), "\n")

	for i := range max(len(g), len(w)) {
		gl, wl := lineAt(g, i), lineAt(w, i)
		if gl != wl {
			return i + 1, gl, wl
		}
	}

	if got != want {
		return len(g), newlineState(got), newlineState(want)
	}

	return 0, "", ""
}

func newlineState(s string) string {
	if strings.HasSuffix(s, "\n") {
		return "<trailing newline>"
	}

	return "<no trailing newline>"
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}

	return "<missing>"
}
