package api

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"image/png"
	"net/http"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/go-chi/chi/v5"

	"github.com/TilBlechschmidt/restic-dl/internal/engine"
	"github.com/TilBlechschmidt/restic-dl/internal/httperror"
	"github.com/TilBlechschmidt/restic-dl/internal/ident"
)

const qrCodeSize = 256

// ShareHandler renders the share page: a download URL plus a QR code of it.
type ShareHandler struct {
	manager *engine.Manager
	siteURL string
}

type sharePartial struct {
	URL       string
	QRDataURI string
}

var sharePageTemplate = template.Must(template.New("share-page").Parse(`<!doctype html>
<html><head><title>Share link</title></head>
<body>
{{template "fragment" .}}
</body></html>
{{define "fragment"}}
<div class="share">
<p><a href="{{.URL}}">{{.URL}}</a></p>
<img src="{{.QRDataURI}}" alt="QR code for {{.URL}}">
</div>
{{end}}`))

// Share serves `GET /restore/:id/share`. An HX-Request header triggers a
// fragment-only response for htmx-style partial swaps, matching the
// original's content-negotiation behavior.
func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := ident.ParseRestoreID(chi.URLParam(r, "id"))
	if err != nil {
		httperror.Write(w, r, httperror.BadRequest("malformed restore id"))
		return
	}

	// Fetch purely to confirm the id is known — a share link for a
	// nonexistent restore is answered with NotFound rather than rendered.
	if _, err := h.manager.Fetch(id); err != nil {
		httperror.Write(w, r, httperror.NotFound("unknown restore id"))
		return
	}

	url := h.siteURL + "/restore/" + id.String()

	dataURI, err := qrDataURI(url)
	if err != nil {
		httperror.Write(w, r, httperror.Internal("failed to render qr code", err))
		return
	}

	partial := sharePartial{URL: url, QRDataURI: dataURI}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Header.Get("HX-Request") != "" {
		_ = sharePageTemplate.ExecuteTemplate(w, "fragment", partial)
		return
	}
	_ = sharePageTemplate.Execute(w, partial)
}

func qrDataURI(content string) (string, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}

	code, err = barcode.Scale(code, qrCodeSize, qrCodeSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
