package http

import (
	"html/template"
	"net/http"
	"strings"

	"edtech-enrollment/internal/infra/logging"
)

// handleCallback is where the payer lands after checkout. It confirms the
// transaction with the provider through the same reconcile path as the webhook.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tr := s.deps.Translator

	q := r.URL.Query()
	reference := strings.TrimSpace(q.Get("reference"))
	if reference == "" {
		reference = strings.TrimSpace(q.Get("trxref"))
	}
	if reference == "" {
		s.renderHTML(w, http.StatusBadRequest, pageFail, tr.T("callback.missing"))
		return
	}

	log := logging.With(logging.WithReference(ctx, reference), s.log)
	vr, err := s.deps.Reconciler.ConfirmByReference(ctx, reference)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("callback verification failed")
		s.renderHTML(w, http.StatusBadGateway, pagePending, tr.T("callback.error"))
	case vr.Status == "success":
		s.renderHTML(w, http.StatusOK, pageOK, tr.T("callback.success", reference))
	case vr.Status == "failed" || vr.Status == "abandoned" || vr.Status == "reversed":
		s.renderHTML(w, http.StatusOK, pageFail, tr.T("callback.failed", reference, vr.Status))
	default:
		s.renderHTML(w, http.StatusOK, pagePending, tr.T("callback.pending", reference))
	}
}

type pageState string

const (
	pageOK      pageState = "ok"
	pagePending pageState = "pending"
	pageFail    pageState = "fail"
)

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .pending{color:#8a6d00} .fail{color:#b00020}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{.State}}">{{if eq .State "ok"}}✅{{else if eq .State "pending"}}⏳{{else}}⚠️{{end}} {{.Title}}</h2>
  <p>{{.Msg}}</p>
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, state pageState, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		Title string
		State string
		Msg   string
	}{
		Title: s.deps.Translator.T("callback.title"),
		State: string(state),
		Msg:   msg,
	})
}
