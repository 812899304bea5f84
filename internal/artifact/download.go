package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteDownloadArchive streams a ZIP of the user-facing workspace contents
// to w: problem_data.json, the rendered problem_statement.md, the
// testcases directory, and solution.cpp if present (spec §6.1 Download
// workspace). Unlike ZipTestcases this is read-only and best-effort on
// missing optional files — a workspace with only a fetched statement and
// no generated tests yet still downloads successfully.
func (m *Manager) WriteDownloadArchive(w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, name := range []string{problemDataFile, statementFile, solutionFile} {
		if err := addOptionalFile(zw, m.path(name), name); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}

	testcases := m.TestcasesDir()
	entries, err := os.ReadDir(testcases)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read testcases dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		archiveName := filepath.Join("tests", entry.Name())
		if err := addFileToZip(zw, filepath.Join(testcases, entry.Name()), archiveName); err != nil {
			return fmt.Errorf("add %s: %w", archiveName, err)
		}
	}
	return nil
}

func addOptionalFile(zw *zip.Writer, srcPath, nameInArchive string) error {
	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return addFileToZip(zw, srcPath, nameInArchive)
}
