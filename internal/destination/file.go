package destination

import (
	"fmt"
	"io"

	"github.com/TilBlechschmidt/restic-dl/internal/iowrap"
	"github.com/TilBlechschmidt/restic-dl/internal/progress"
)

// FileDestination is the single-file restore sink: it owns one inner writer
// and hands it out, progress-wrapped, for whatever single file the plan
// restores. The path argument to AddFile is ignored — there is only ever one
// file in this destination.
type FileDestination struct {
	sink    io.Writer
	tracker *progress.Tracker
}

// NewFileDestination wraps sink for a single-file restore.
func NewFileDestination(sink io.Writer, tracker *progress.Tracker) *FileDestination {
	return &FileDestination{sink: sink, tracker: tracker}
}

func (d *FileDestination) AddFile(_ string) (io.WriteCloser, error) {
	return iowrap.NewProgressWriter(d.sink, d.tracker), nil
}

func (d *FileDestination) AddDir(path string) error {
	return fmt.Errorf("destination: AddDir(%q) invalid on a FileDestination — single-file restores never contain directories", path)
}
