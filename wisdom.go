package ocean

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-ocean/internal/wisdom"
)

// Wisdom is the library of tuned transform parameters.
type Wisdom = wisdom.Library

// NewWisdom creates a new empty wisdom library.
func NewWisdom() *Wisdom {
	return wisdom.NewLibrary()
}

// ImportWisdom replaces the entries of lib with those in filename.
// The file should be in the format produced by ExportWisdom. On error lib
// is unchanged.
func ImportWisdom(lib *Wisdom, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open wisdom file: %w", err)
	}

	defer f.Close()

	if err := lib.Extract(f); err != nil {
		return fmt.Errorf("failed to import wisdom: %w", err)
	}

	return nil
}

// ImportWisdomFromString loads wisdom data from a string.
// This is useful for embedding wisdom data in compiled binaries.
func ImportWisdomFromString(lib *Wisdom, data string) error {
	if err := lib.Extract(strings.NewReader(data)); err != nil {
		return fmt.Errorf("failed to import wisdom from string: %w", err)
	}

	return nil
}

// ExportWisdom saves lib to filename. The file is written next to its
// destination and renamed into place, so a crash never leaves a truncated
// wisdom file behind.
func ExportWisdom(lib *Wisdom, filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("failed to create wisdom file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if err := lib.Archive(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to export wisdom: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to export wisdom: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to export wisdom: %w", err)
	}

	return nil
}

// LoadWisdom imports filename into lib and reports whether it did. Missing
// or unreadable files are logged and leave lib as it was.
func LoadWisdom(lib *Wisdom, filename string) bool {
	log := Logger()

	if err := ImportWisdom(lib, filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("ocean: no wisdom file, using defaults", "path", filename)
		} else {
			log.Warn("ocean: wisdom file unusable, using defaults", "path", filename, "err", err)
		}

		return false
	}

	log.Info("ocean: wisdom loaded", "path", filename, "entries", lib.Len())

	return true
}
