package updatefile

import (
	"fmt"
	"os"
	"strings"
)

// Scan lists the regular files of the updates directory in filename order.
// Sub-directories and hidden files (.gitkeep) are ignored; every other entry
// is returned so the caller can discard files that are not SQL scripts.
func Scan(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading updates directory %s: %w", dir, err)
	}

	files := make([]File, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		files = append(files, newFile(dir, entry.Name()))
	}

	return files, nil
}
