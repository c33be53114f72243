package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/talent-sync/internal/fileutil"
	"github.com/sells-group/talent-sync/internal/model"
)

// fileVersion is bumped when the on-disk layout changes incompatibly.
const fileVersion = 1

type fileEnvelope struct {
	Version    int               `json:"version"`
	SavedAt    time.Time         `json:"saved_at"`
	Candidates []model.Candidate `json:"candidates"`
}

// FilePersister stores the snapshot as one JSON document. Saves write a
// sibling temp file, fsync it and rename it over the target.
type FilePersister struct {
	path string
	now  func() time.Time
}

// NewFilePersister returns a persister for path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path, now: time.Now}
}

// Path returns the snapshot file location.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the snapshot. A missing file is an empty snapshot. A bare JSON
// array of candidates is accepted as well as the versioned envelope.
func (p *FilePersister) Load(_ context.Context) ([]model.Candidate, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", p.path)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []model.Candidate
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, eris.Wrapf(err, "snapshot: decode %s", p.path)
		}
		return records, nil
	}

	var env fileEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, eris.Wrapf(err, "snapshot: decode %s", p.path)
	}
	if env.Version > fileVersion {
		return nil, eris.Errorf("snapshot: %s has version %d, newer than supported %d", p.path, env.Version, fileVersion)
	}
	return env.Candidates, nil
}

// Save atomically replaces the snapshot file.
func (p *FilePersister) Save(ctx context.Context, records []model.Candidate) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "snapshot: save")
	}
	if records == nil {
		records = []model.Candidate{}
	}

	data, err := json.MarshalIndent(fileEnvelope{
		Version:    fileVersion,
		SavedAt:    p.now().UTC(),
		Candidates: records,
	}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: encode")
	}

	return fileutil.WriteAtomic(p.path, data, 0o644)
}
