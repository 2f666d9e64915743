package web

import (
	"embed"
	"html/template"

	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

//go:embed templates/*.html
var templateFS embed.FS

// ParseTemplates loads the page templates. Gin renders them by file name
// ("index.html") or by define ("live").
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

type pageData struct {
	workspace.View
	Confirm *confirmData
}

type confirmData struct {
	Message string
	Subject string
	Action  string
}
