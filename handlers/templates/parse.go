package templates

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed *.html
var FS embed.FS

// ParseTemplates parses HTML templates from the embedded filesystem.
// Execute the result with ExecuteTemplate(w, "base.html", data).
func ParseTemplates(files ...string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"join": strings.Join,
		"percent": func(f float64) string {
			return fmt.Sprintf("%.0f%%", f*100)
		},
	}

	return template.New("").Funcs(funcMap).ParseFS(FS, files...)
}
