package httpapi

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type callbackPage struct {
	State       string
	CompleteURL string
	AppName     string
}
