// Package resticcli implements backend.Backend by shelling out to the real
// restic binary, the same os/exec-wrapping idiom the rest of this codebase
// uses for driving the backup engine: build an exec.CommandContext per
// operation, set RESTIC_REPOSITORY/RESTIC_PASSWORD in its environment, and
// either wait for its stdout (or stream it into a writer) or scan
// newline-delimited JSON from stdout. No other package may invoke the restic binary directly.
package resticcli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
)

// Backend locates the restic binary to invoke for every repository it opens.
type Backend struct {
	// ResticBin is the absolute or PATH-resolved name of the restic
	// executable. Defaults to "restic" via New.
	ResticBin string
}

// New returns a Backend that invokes the restic binary found on PATH.
func New() *Backend {
	return &Backend{ResticBin: "restic"}
}

// Open verifies the repository can be read with the given password (via a
// cheap `cat config` call) and returns a handle bound to path/password.
func (b *Backend) Open(ctx context.Context, path, password string) (backend.Repository, error) {
	repo := &Repository{resticBin: b.ResticBin, repoPath: path, password: password}

	id, err := repo.readConfigID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resticcli: failed to open repository at %q: %w", path, err)
	}
	repo.id = id
	return repo, nil
}

// Repository is a backend.Repository backed by a restic repository path and
// password. It is safe for concurrent use: each method invocation spawns its
// own subprocess.
type Repository struct {
	resticBin string
	repoPath  string
	password  string
	id        string
}

func (r *Repository) ID() string { return r.id }

func (r *Repository) Close() error { return nil }

type snapshotJSON struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Paths []string  `json:"paths"`
}

func (r *Repository) Snapshots(ctx context.Context) ([]backend.Snapshot, error) {
	out, err := r.output(ctx, "snapshots", "--json")
	if err != nil {
		return nil, err
	}

	var raw []snapshotJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("resticcli: failed to parse snapshots output: %w", err)
	}

	snaps := make([]backend.Snapshot, 0, len(raw))
	for _, s := range raw {
		snaps = append(snaps, backend.Snapshot{ID: s.ID, Time: s.Time, Paths: s.Paths})
	}
	return snaps, nil
}

// lsNode mirrors the subset of `restic ls --json` node records the core
// needs. Only lines with struct_type "node" describe tree entries; the
// leading "snapshot" summary line is skipped.
type lsNode struct {
	StructType string `json:"struct_type"`
	Path       string `json:"path"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
}

func (r *Repository) Enumerate(ctx context.Context, snapshotID, path string, recursive bool) ([]backend.Entry, error) {
	args := []string{"ls", "--json", snapshotID}
	if path != "" {
		args = append(args, path)
	}

	out, err := r.output(ctx, args...)
	if err != nil {
		return nil, err
	}

	var entries []backend.Entry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var node lsNode
		if err := json.Unmarshal(line, &node); err != nil {
			continue
		}
		if node.StructType != "node" {
			continue
		}
		if !recursive && !isDirectChild(path, node.Path) {
			continue
		}

		kind := backend.File
		if node.Type == "dir" {
			kind = backend.Directory
		}
		entries = append(entries, backend.Entry{Path: node.Path, Kind: kind, Size: node.Size})
	}
	return entries, nil
}

func (r *Repository) Entry(ctx context.Context, snapshotID, path string) (backend.Entry, error) {
	entries, err := r.Enumerate(ctx, snapshotID, path, false)
	if err != nil {
		return backend.Entry{}, err
	}
	for _, e := range entries {
		if e.Path == path {
			return e, nil
		}
	}
	return backend.Entry{}, fmt.Errorf("resticcli: no entry found at %q in snapshot %q", path, snapshotID)
}

func (r *Repository) Dump(ctx context.Context, snapshotID, path string, w io.Writer) error {
	cmd := r.buildCmd(ctx, "dump", snapshotID, path)
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("resticcli: dump %q failed: %w\n%s", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// limitedWriter caps the number of bytes retained while still reporting how
// many more bytes than the limit were seen, so Read can compute truncatedBy
// without buffering the whole (potentially huge) file in memory.
type limitedWriter struct {
	limit   int64
	buf     bytes.Buffer
	written int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	l.written += int64(len(p))
	if room := l.limit - int64(l.buf.Len()); room > 0 {
		if int64(len(p)) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

func (r *Repository) Read(ctx context.Context, snapshotID, path string, limit int64) ([]byte, int64, error) {
	lw := &limitedWriter{limit: limit}
	if err := r.Dump(ctx, snapshotID, path, lw); err != nil {
		return nil, 0, err
	}

	truncatedBy := lw.written - int64(lw.buf.Len())
	if truncatedBy < 0 {
		truncatedBy = 0
	}
	return lw.buf.Bytes(), truncatedBy, nil
}

type configJSON struct {
	ID string `json:"id"`
}

func (r *Repository) readConfigID(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "cat", "config")
	if err != nil {
		return "", err
	}
	var cfg configJSON
	if err := json.Unmarshal(out, &cfg); err != nil {
		return "", fmt.Errorf("resticcli: failed to parse repository config: %w", err)
	}
	return cfg.ID, nil
}

func (r *Repository) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := r.buildCmd(ctx, args...)
	out, err := cmd.Output()
	if err != nil {
		stderr := ""
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return nil, fmt.Errorf("resticcli: command failed: %w\n%s", err, stderr)
	}
	return out, nil
}

// buildCmd constructs the exec.Cmd for a restic invocation against this
// repository, inheriting the current environment and overlaying
// RESTIC_REPOSITORY/RESTIC_PASSWORD.
func (r *Repository) buildCmd(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.resticBin, args...)
	cmd.Env = append(cmd.Environ(),
		"RESTIC_REPOSITORY="+r.repoPath,
		"RESTIC_PASSWORD="+r.password,
	)
	return cmd
}

func isDirectChild(parent, candidate string) bool {
	if parent == "" || parent == "/" {
		return strings.Count(strings.Trim(candidate, "/"), "/") == 0
	}
	trimmedParent := strings.TrimSuffix(parent, "/")
	if !strings.HasPrefix(candidate, trimmedParent+"/") {
		return candidate == trimmedParent
	}
	rest := strings.TrimPrefix(candidate, trimmedParent+"/")
	return !strings.Contains(rest, "/")
}
