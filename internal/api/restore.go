package api

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TilBlechschmidt/restic-dl/internal/engine"
	"github.com/TilBlechschmidt/restic-dl/internal/httperror"
	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/progress"
	"github.com/TilBlechschmidt/restic-dl/internal/restore"
)

const (
	downloadMaxWait     = time.Second
	downloadCheckPeriod = 250 * time.Millisecond
	sseWindow           = 100 * time.Millisecond
)

// RestoreHandler implements the download coordinator (C11): restore
// request intake, the short synchronous wait before falling back to a
// progress page, and the SSE delta stream.
type RestoreHandler struct {
	manager *engine.Manager
}

// Create serves `POST /restore/:repo/:snapshot/*path[?share]`.
func (h *RestoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	repo, _ := repositoryFromContext(r.Context())
	snapshotID := chi.URLParam(r, "snapshot")
	sourcePath := path.Clean("/" + chi.URLParam(r, "*"))

	id, err := h.manager.Restore(r.Context(), repo, repo.ID(), snapshotID, sourcePath)
	if err != nil {
		httperror.Write(w, r, httperror.Internal("failed to start restore", err))
		return
	}

	target := "/restore/" + id.String()
	if r.URL.Query().Has("share") {
		target += "/share"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Download serves `GET /restore/:id`: a short synchronous wait for the
// artifact to become ready, streaming it if it does, otherwise falling
// back to a progress page pointing at the SSE endpoint.
func (h *RestoreHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := ident.ParseRestoreID(chi.URLParam(r, "id"))
	if err != nil {
		httperror.Write(w, r, httperror.BadRequest("malformed restore id"))
		return
	}

	deadline := time.Now().Add(downloadMaxWait)
	var result engine.FetchResult
	for time.Now().Before(deadline) {
		time.Sleep(downloadCheckPeriod)
		result, err = h.manager.Fetch(id)
		if err == nil && result.Status == engine.FetchReady {
			h.stream(w, r, result)
			return
		}
	}

	result, err = h.manager.Fetch(id)
	if err != nil {
		httperror.Write(w, r, httperror.NotFound("unknown restore id"))
		return
	}
	if result.Status == engine.FetchReady {
		h.stream(w, r, result)
		return
	}

	renderProgressPage(w, id)
}

func (h *RestoreHandler) stream(w http.ResponseWriter, r *http.Request, result engine.FetchResult) {
	f, err := os.Open(result.DataPath)
	if err != nil {
		httperror.Write(w, r, httperror.Internal("failed to open restored artifact", err))
		return
	}
	defer f.Close()

	name := path.Base(result.Source)
	if name == "" || name == "." || name == "/" {
		name = "restore"
	}
	if result.Content.Kind == restore.ContentArchive {
		name += ".zip"
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

var progressPageTemplate = template.Must(template.New("progress-page").Parse(`<!doctype html>
<html><head><title>Restoring…</title></head>
<body>
<div id="progress">Preparing your download…</div>
<script>
var es = new EventSource("/restore/{{.}}/progress");
es.addEventListener("data", function(e) { document.getElementById("progress").innerHTML = e.data; });
es.addEventListener("reload", function(e) { window.location.reload(); });
</script>
</body></html>`))

func renderProgressPage(w http.ResponseWriter, id ident.RestoreID) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = progressPageTemplate.Execute(w, id.String())
}

// Progress serves `GET /restore/:id/progress` as a server-sent event
// stream: 100 ms windowed, delta-only, dropping empty deltas, with a final
// `reload` event once the restore reaches a terminal status.
func (h *RestoreHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := ident.ParseRestoreID(chi.URLParam(r, "id"))
	if err != nil {
		httperror.Write(w, r, httperror.BadRequest("malformed restore id"))
		return
	}

	tracker, ok := h.manager.Progress(id)
	if !ok {
		// Either already finished or unknown — either way there is nothing
		// to stream; tell the client to reload and pick up the final state.
		writeReloadEvent(w)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := tracker.Handle().Subscribe()
	defer sub.Close()

	previous := progress.Progress{}
	var latest *progress.Progress

	ticker := time.NewTicker(sseWindow)
	defer ticker.Stop()

	for {
		select {
		case p := <-sub.C():
			pc := p
			latest = &pc

		case <-ticker.C:
			if latest == nil {
				continue
			}

			delta := progress.ComputeDelta(previous, *latest)
			if !delta.IsEmpty() {
				writeDataEvent(w, delta)
				if flusher != nil {
					flusher.Flush()
				}
				previous = *latest
			}

			terminal := latest.Status == progress.StatusCompleted || latest.Status == progress.StatusFailed
			latest = nil
			if terminal {
				writeReloadEvent(w)
				if flusher != nil {
					flusher.Flush()
				}
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func writeDataEvent(w http.ResponseWriter, d progress.Delta) {
	fmt.Fprintf(w, "event: data\ndata: %s\n\n", renderDeltaFragment(d))
}

func writeReloadEvent(w http.ResponseWriter) {
	fmt.Fprint(w, "event: reload\ndata: <script>window.location.reload();</script>\n\n")
}

func renderDeltaFragment(d progress.Delta) string {
	fragment := ""
	if d.Status != nil {
		fragment += fmt.Sprintf("<span class=\"status\">%s</span>", d.Status.String())
	}
	if d.Data != nil {
		fragment += fmt.Sprintf("<span class=\"data\">%.0f%%</span>", d.Data.Percentage())
	}
	if d.Files != nil {
		fragment += fmt.Sprintf("<span class=\"files\">%d/%d files</span>", d.Files.Current, d.Files.Total)
	}
	if d.Directories != nil {
		fragment += fmt.Sprintf("<span class=\"directories\">%d/%d directories</span>", d.Directories.Current, d.Directories.Total)
	}
	return fragment
}
