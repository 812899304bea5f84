package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NumTestcases is the fixed testcase count the gen stage must produce
// (spec §4.2.2 Gen step 7: exactly {0..9}.in/.out).
const NumTestcases = 10

// TestcasesDir returns the directory generated test files live in, inside
// the workspace (spec §6.3 names the files, not this subdirectory, but
// keeping them out of the workspace root keeps problem_data.json/
// processing_status.json uncluttered).
func (m *Manager) TestcasesDir() string {
	return m.path(testcasesDir)
}

// NormalizeTestFile trims leading/trailing blank lines, collapses to
// exactly one trailing newline, and rewrites an empty .in file to a
// single newline so downstream parsers that choke on truly empty stdin
// never see one (spec §4.2.2 Gen step 6).
func NormalizeTestFile(content []byte) []byte {
	text := strings.Trim(string(content), "\n")
	text = strings.TrimRight(text, " \t\r\n")
	if text == "" {
		return []byte("\n")
	}
	return []byte(text + "\n")
}

// WriteTestFile normalizes and atomically writes one generated test file
// (e.g. "0.in") into TestcasesDir.
func (m *Manager) WriteTestFile(name string, content []byte) error {
	dir := m.TestcasesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create testcases dir: %w", err)
	}
	return writeAtomic(filepath.Join(dir, name), NormalizeTestFile(content))
}

// ValidateTestcaseCompleteness checks that exactly {0.in,0.out,...,9.in,9.out}
// exist in TestcasesDir, using a doublestar glob so the same pattern also
// catches accidental extras (spec §4.2.2 Gen step 7).
func ValidateTestcaseCompleteness(dir string) error {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "*.{in,out}"))
	if err != nil {
		return fmt.Errorf("glob testcases: %w", err)
	}

	want := make(map[string]bool, NumTestcases*2)
	for i := 0; i < NumTestcases; i++ {
		want[fmt.Sprintf("%d.in", i)] = true
		want[fmt.Sprintf("%d.out", i)] = true
	}

	got := make(map[string]bool, len(matches))
	for _, m := range matches {
		got[filepath.Base(m)] = true
	}

	var missing []string
	for name := range want {
		if !got[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("incomplete testcase set, missing: %s", strings.Join(missing, ", "))
	}

	var unexpected []string
	for name := range got {
		if !want[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected files in testcase set: %s", strings.Join(unexpected, ", "))
	}

	return nil
}

// ZipTestcases archives the 10 .in/.out pairs into
// problem_<sanitized_id>_testcase.zip inside the workspace root (spec
// §4.2.2 Gen step 8, §6.3).
func (m *Manager) ZipTestcases(canonicalProblemID string) (string, error) {
	dir := m.TestcasesDir()
	if err := ValidateTestcaseCompleteness(dir); err != nil {
		return "", err
	}

	archiveName := fmt.Sprintf("problem_%s_testcase.zip", Sanitize(canonicalProblemID))
	archivePath := m.path(archiveName)

	tmp, err := os.CreateTemp(m.dir, ".tmp-zip-*")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw := zip.NewWriter(tmp)
	for i := 0; i < NumTestcases; i++ {
		for _, ext := range []string{"in", "out"} {
			name := fmt.Sprintf("%d.%s", i, ext)
			if err := addFileToZip(zw, filepath.Join(dir, name), name); err != nil {
				zw.Close()
				tmp.Close()
				return "", fmt.Errorf("zip %s: %w", name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("finalize zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return "", fmt.Errorf("rename archive into place: %w", err)
	}
	return archivePath, nil
}

func addFileToZip(zw *zip.Writer, srcPath, nameInArchive string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(nameInArchive)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
