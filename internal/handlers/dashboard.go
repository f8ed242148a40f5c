package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"os"
)

var placeholderPage = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.}}</title></head>
<body>
<main style="font-family: system-ui, sans-serif; max-width: 40rem; margin: 10vh auto;">
  <h1>{{.}}</h1>
  <p>Access granted. Set DASHBOARD_DIR to serve the dashboard build from this address.</p>
</main>
</body>
</html>
`))

// NewDashboardHandler serves the protected dashboard: static files from dir
// when set, otherwise a placeholder page.
func NewDashboardHandler(dir string, logger *slog.Logger) (http.Handler, error) {
	if dir == "" {
		return http.HandlerFunc(servePlaceholder(logger)), nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "serve", Path: dir, Err: os.ErrInvalid}
	}

	return http.FileServer(http.Dir(dir)), nil
}

func servePlaceholder(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := placeholderPage.Execute(w, pageTitle); err != nil {
			logger.Error("failed to render dashboard placeholder", slog.Any("error", err))
		}
	}
}
