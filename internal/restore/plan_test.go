package restore

import (
	"bytes"
	"context"
	"testing"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/backend/memfake"
	"github.com/TilBlechschmidt/restic-dl/internal/destination"
	"github.com/TilBlechschmidt/restic-dl/internal/progress"
)

func newTestRepo(t *testing.T) backend.Repository {
	t.Helper()
	b := memfake.New()
	b.Add("/repo", "hunter2", "cfg-id-123",
		backend.Snapshot{ID: "abcdef0123"},
		[]memfake.File{
			{Path: "/home/alice/docs/notes.txt", Content: bytes.Repeat([]byte{'a'}, 10)},
			{Path: "/home/alice/docs/sub/a.txt", Content: bytes.Repeat([]byte{'b'}, 20)},
			{Path: "/etc/hostname", Content: []byte("myhost\n")},
			{Path: "/empty.txt", Content: []byte{}},
		},
	)
	repo, err := b.Open(context.Background(), "/repo", "hunter2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func TestPlanSingleFile(t *testing.T) {
	repo := newTestRepo(t)
	plan, err := NewPlan(context.Background(), repo, "abcdef0123", "/etc/hostname")
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.Content().Kind != ContentFile {
		t.Fatalf("expected ContentFile, got %v", plan.Content().Kind)
	}
	if plan.Content().Size != 7 {
		t.Fatalf("expected size 7, got %d", plan.Content().Size)
	}

	var buf bytes.Buffer
	tr := progress.NewTracker()
	dest := destination.NewFileDestination(&buf, tr)
	if err := plan.Execute(context.Background(), dest); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if buf.String() != "myhost\n" {
		t.Fatalf("unexpected content: %q", buf.String())
	}
}

func TestPlanEmptyFile(t *testing.T) {
	repo := newTestRepo(t)
	plan, err := NewPlan(context.Background(), repo, "abcdef0123", "/empty.txt")
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.Content().Size != 0 {
		t.Fatalf("expected size 0, got %d", plan.Content().Size)
	}

	var buf bytes.Buffer
	tr := progress.NewTracker()
	dest := destination.NewFileDestination(&buf, tr)
	if err := plan.Execute(context.Background(), dest); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written, got %d", buf.Len())
	}
}

func TestPlanDirectoryArchive(t *testing.T) {
	repo := newTestRepo(t)
	plan, err := NewPlan(context.Background(), repo, "abcdef0123", "/home/alice/docs")
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.Content().Kind != ContentArchive {
		t.Fatalf("expected ContentArchive, got %v", plan.Content().Kind)
	}
	if plan.Content().Files != 2 || plan.Content().Directories != 1 {
		t.Fatalf("unexpected counts: %+v", plan.Content())
	}
	if plan.Content().Size != 30 {
		t.Fatalf("expected size 30, got %d", plan.Content().Size)
	}

	var buf bytes.Buffer
	tr := progress.NewTracker()
	tr.SetState(progress.Progress{
		Files:       &progress.Variable{Total: plan.Content().Files},
		Directories: &progress.Variable{Total: plan.Content().Directories},
	})
	dest := destination.NewArchiveDestination(&buf, "/home/alice/docs", tr)
	if err := plan.Execute(context.Background(), dest); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected archive bytes to be written")
	}
}
