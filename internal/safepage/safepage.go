package safepage

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const defaultTemplate = "news"

// Data feeds a safe-page template. Defaults are applied by Fill.
type Data struct {
	Title      string
	Headline   string
	ThemeColor string
	Logo       string
	Domain     string
}

// Fill builds render data from a domain's content config, enumerating
// every default in one place.
func Fill(content map[string]string, host string) Data {
	d := Data{
		Title:      content["title"],
		Headline:   content["headline"],
		ThemeColor: content["theme_color"],
		Logo:       content["logo"],
		Domain:     host,
	}
	if d.Title == "" {
		d.Title = "News"
	}
	if d.Headline == "" {
		d.Headline = "News"
	}
	if d.ThemeColor == "" {
		d.ThemeColor = "#333"
	}
	return d
}

// Render writes the page for the given template id. Unknown ids fall back
// to the default template.
func Render(w io.Writer, tpl string, d Data) error {
	if tpl == "" || pages.Lookup(tpl+".html") == nil {
		tpl = defaultTemplate
	}
	if err := pages.ExecuteTemplate(w, tpl+".html", d); err != nil {
		return fmt.Errorf("render safe page %q: %w", tpl, err)
	}
	return nil
}
