package dedup

import (
	"os"
	"path/filepath"
	"time"
)

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeFileMtime(path string, data []byte, mtime time.Time) error {
	if err := writeFile(path, data); err != nil {
		return err
	}
	return os.Chtimes(path, mtime, mtime)
}
