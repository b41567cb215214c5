package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry is one member of an archive built by BuildZip.
type ZipEntry struct {
	Name string
	Body string
	Dir  bool
}

// BuildZip writes a zip archive with entries in the given order and returns
// its bytes.
func BuildZip(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}

	zw := zip.NewWriter(f)
	for _, e := range entries {
		name := e.Name
		if e.Dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if !e.Dir {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write entry %s: %v", name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	return data
}

// FakePandoc describes the behavior of a scripted stand-in for pandoc.
type FakePandoc struct {
	// Version is printed on stdout for --version.
	Version string
	// VersionStderr and VersionExit control a failing --version run.
	VersionStderr string
	VersionExit   int

	// Stdout, Stderr and Exit control a conversion run.
	Stdout string
	Stderr string
	Exit   int

	// ArgsFile, when set, receives one argument per line for every run.
	ArgsFile string
	// Sleep delays every run by the given number of seconds.
	Sleep int
}

// WriteFakePandoc writes an executable shell script that mimics pandoc and
// returns its path. A successful conversion creates the file named by -o.
func WriteFakePandoc(t *testing.T, dir string, fake FakePandoc) string {
	t.Helper()
	SkipOnWindows(t)

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if fake.ArgsFile != "" {
		fmt.Fprintf(&b, "printf '%%s\\n' \"$@\" > %s\n", shellQuote(fake.ArgsFile))
	}
	if fake.Sleep > 0 {
		fmt.Fprintf(&b, "sleep %d\n", fake.Sleep)
	}
	b.WriteString("if [ \"$1\" = \"--version\" ]; then\n")
	fmt.Fprintf(&b, "  printf '%%s' %s\n", shellQuote(fake.Version))
	fmt.Fprintf(&b, "  printf '%%s' %s >&2\n", shellQuote(fake.VersionStderr))
	fmt.Fprintf(&b, "  exit %d\n", fake.VersionExit)
	b.WriteString("fi\n")
	b.WriteString("out=\"\"\n")
	b.WriteString("while [ $# -gt 0 ]; do\n")
	b.WriteString("  if [ \"$1\" = \"-o\" ]; then shift; out=\"$1\"; fi\n")
	b.WriteString("  shift\n")
	b.WriteString("done\n")
	fmt.Fprintf(&b, "printf '%%s' %s\n", shellQuote(fake.Stdout))
	fmt.Fprintf(&b, "printf '%%s' %s >&2\n", shellQuote(fake.Stderr))
	if fake.Exit == 0 {
		b.WriteString("if [ -n \"$out\" ]; then : > \"$out\"; fi\n")
	}
	fmt.Fprintf(&b, "exit %d\n", fake.Exit)

	path := filepath.Join(dir, "pandoc")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write fake pandoc: %v", err)
	}
	return path
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
