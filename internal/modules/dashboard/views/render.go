package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"riverdash/internal/modules/dashboard/types"
	"riverdash/internal/modules/forecast"
)

var dashboardTmpl *template.Template

var errNotLoaded = errors.New("dashboard templates not loaded: call views.LoadTemplates during startup")

var funcs = template.FuncMap{
	"num":    formatNum,
	"change": formatChange,
	"glyph":  func(i forecast.Icon) string { return i.Glyph() },
	"clock":  formatClock,
}

// loadTemplatesFromFS parses every page and partial under dir.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

func RenderDashboard(w io.Writer, data *types.Dashboard) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderRiversPartial executes only the river list, for paging without a
// full page load.
func RenderRiversPartial(w io.Writer, data *types.RiversPage) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/rivers.html", data)
}

func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("3:04 PM")
}

// formatNum renders an optional value with the given decimals, or "--".
func formatNum(v *float64, decimals int) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}

// formatChange renders a signed delta with a trend arrow, or "" when unknown.
func formatChange(v *float64, decimals int) string {
	if v == nil {
		return ""
	}
	switch {
	case *v > 0:
		return fmt.Sprintf("▲ +%.*f", decimals, *v)
	case *v < 0:
		return fmt.Sprintf("▼ %.*f", decimals, *v)
	default:
		return "● 0"
	}
}
