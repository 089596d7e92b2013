package recognition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// splitPages turns a downloaded artifact into one file per page. PDFs are
// split with pdfcpu into single-page documents; image uploads are already a
// single page and pass through untouched.
func splitPages(localPath string, isPDF bool) ([]string, error) {
	if !isPDF {
		return []string{localPath}, nil
	}

	pageCount, err := api.PageCountFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("count pages of %s: %w", localPath, err)
	}

	outDir, err := os.MkdirTemp("", "gradepipe-pages-")
	if err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}

	if err := api.SplitFile(localPath, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split %s: %w", localPath, err)
	}

	// pdfcpu names split output <base>_<page>.pdf.
	base := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	paths := make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%d.pdf", base, page))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("split page %d missing: %w", page, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
