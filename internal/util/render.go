package util

import (
	"html/template"
	"net/http"
	"time"

	"warbler/web"
)

var funcs = template.FuncMap{
	"datetime": FormatDateTime,
}

// Render writes the named page wrapped in the base layout. Templates are
// embedded, so rendering works the same from the binary and from tests.
func Render(w http.ResponseWriter, name string, data any) {
	t := template.Must(template.New(name).Funcs(funcs).ParseFS(
		web.Templates,
		"templates/layout.html",
		"templates/"+name,
	))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = t.ExecuteTemplate(w, "base", data)
}

func FormatDateTime(timestamp int64) string {
	t := time.Unix(timestamp, 0)
	return t.Format("Jan 2, 2006 at 3:04PM")
}
