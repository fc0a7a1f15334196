package matching

import (
	"errors"
	"io/fs"
	"path/filepath"

	"stereomatch/internal/fileutil"
	"stereomatch/internal/stage"
	"stereomatch/internal/stereo"
)

// loadMatches reads a match list. A missing file becomes a halting reason.
func loadMatches(path string, c stereo.Combination) ([]stereo.MatchRecord, stage.Reason, error) {
	records, err := stereo.LoadMatches(path, c)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, stage.Haltf("missing %s/%s", c, filepath.Base(path)), nil
	}
	return records, stage.Continue, err
}

func writeMatches(path string, records []stereo.MatchRecord) error {
	return fileutil.WriteFileAtomic(path, stereo.EncodeMatches(records), 0o644)
}
