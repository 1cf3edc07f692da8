package api

import (
	"html/template"
	"net/http"
	"path"
	"sort"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/httperror"
)

// previewLimit caps how much of a file's content is read for inline preview.
const previewLimit = 4 << 20 // 4 MiB

// BrowseHandler implements directory listing and file preview.
type BrowseHandler struct{}

type directoryEntryView struct {
	Name       string
	Kind       string
	Size       string
	ViewURL    string
	RestoreURL string
	ShareURL   string
}

type directoryView struct {
	Repo     string
	Snapshot string
	Path     string
	Entries  []directoryEntryView
}

var directoryTemplate = template.Must(template.New("directory").Parse(`<!doctype html>
<html><head><title>{{.Path}}</title></head>
<body>
<h1>{{.Repo}} / {{.Snapshot}} / {{.Path}}</h1>
<table>
<thead><tr><th>Name</th><th>Kind</th><th>Size</th><th></th></tr></thead>
<tbody>
{{range .Entries}}<tr>
<td>{{if .ViewURL}}<a href="{{.ViewURL}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</td>
<td>{{.Kind}}</td>
<td>{{.Size}}</td>
<td>
<form method="post" action="{{.RestoreURL}}" style="display:inline"><button type="submit">restore</button></form>
<form method="post" action="{{.ShareURL}}" style="display:inline"><button type="submit">share</button></form>
</td>
</tr>{{end}}
</tbody>
</table>
</body></html>`))

type previewView struct {
	Repo        string
	Snapshot    string
	Path        string
	IsText      bool
	Text        string
	Size        int64
	TruncatedBy int64
}

var previewTemplate = template.Must(template.New("preview").Parse(`<!doctype html>
<html><head><title>{{.Path}}</title></head>
<body>
<h1>{{.Repo}} / {{.Snapshot}} / {{.Path}}</h1>
{{if .TruncatedBy}}<p>Showing a truncated preview — {{.TruncatedBy}} bytes omitted.</p>{{end}}
{{if .IsText}}<pre>{{.Text}}</pre>{{else}}<p>Binary file, {{.Size}} bytes.</p>{{end}}
</body></html>`))

// Browse serves `GET /browse/:repo/:snapshot[/*path]`.
func (h *BrowseHandler) Browse(w http.ResponseWriter, r *http.Request) {
	repo, repoName := repositoryFromContext(r.Context())
	snapshotID := chi.URLParam(r, "snapshot")
	entryPath := "/" + chi.URLParam(r, "*")
	entryPath = path.Clean(entryPath)

	entry, err := repo.Entry(r.Context(), snapshotID, entryPath)
	if err != nil {
		httperror.Write(w, r, httperror.NotFound("path not found in snapshot"))
		return
	}

	switch entry.Kind {
	case backend.Directory:
		h.renderDirectory(w, r, repo, repoName, snapshotID, entryPath)
	case backend.File:
		h.renderPreview(w, r, repo, repoName, snapshotID, entryPath, entry)
	}
}

func (h *BrowseHandler) renderDirectory(w http.ResponseWriter, r *http.Request, repo backend.Repository, repoName, snapshotID, entryPath string) {
	entries, err := repo.Enumerate(r.Context(), snapshotID, entryPath, false)
	if err != nil {
		httperror.Write(w, r, httperror.Internal("failed to enumerate directory", err))
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind == backend.Directory
		}
		return entries[i].Path < entries[j].Path
	})

	view := directoryView{Repo: repoName, Snapshot: snapshotID, Path: entryPath}
	for _, e := range entries {
		view.Entries = append(view.Entries, entryView(repoName, snapshotID, e))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = directoryTemplate.Execute(w, view)
}

func entryView(repoName, snapshotID string, e backend.Entry) directoryEntryView {
	suffix := path.Join(repoName, snapshotID[:min(8, len(snapshotID))], e.Path)
	name := path.Base(e.Path)

	var viewURL string
	kind := "file"
	if e.Kind == backend.Directory {
		kind = "directory"
		viewURL = "/browse/" + suffix
	}

	return directoryEntryView{
		Name:       name,
		Kind:       kind,
		Size:       humanize.Bytes(uint64(e.Size)),
		ViewURL:    viewURL,
		RestoreURL: "/restore/" + suffix,
		ShareURL:   "/restore/" + suffix + "?share",
	}
}

func (h *BrowseHandler) renderPreview(w http.ResponseWriter, r *http.Request, repo backend.Repository, repoName, snapshotID, entryPath string, entry backend.Entry) {
	data, truncatedBy, err := repo.Read(r.Context(), snapshotID, entryPath, previewLimit)
	if err != nil {
		httperror.Write(w, r, httperror.Internal("failed to read file preview", err))
		return
	}

	view := previewView{
		Repo:        repoName,
		Snapshot:    snapshotID,
		Path:        entryPath,
		Size:        entry.Size,
		TruncatedBy: truncatedBy,
		IsText:      utf8.Valid(data),
	}
	if view.IsText {
		view.Text = string(data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = previewTemplate.Execute(w, view)
}

