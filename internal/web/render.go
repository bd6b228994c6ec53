package web

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/bookshare-dev/bookshare/internal/api"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"distance": formatDistance,
	"count":    func(books []api.Book) int { return len(books) },
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

// formatDistance renders a distance with one decimal, as the book cards show it
func formatDistance(km *float64) string {
	if km == nil {
		return ""
	}
	return fmt.Sprintf("%.1f km", *km)
}
