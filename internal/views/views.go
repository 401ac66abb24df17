// Package views renders Warbler's HTML pages and serves its static assets.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

// Layout wraps every page; it pulls the page in with {{embed}}.
const Layout = "layout"

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func sub(fsys embed.FS, dir string) fs.FS {
	s, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return s
}

// Static returns the embedded static assets rooted at the static directory.
func Static() fs.FS {
	return sub(staticFS, "static")
}

// New returns the template engine over the embedded templates. Pages are
// named by their path without ".html", e.g. "users/show".
func New() *html.Engine {
	engine := html.NewFileSystem(http.FS(sub(templateFS, "templates")), ".html")
	engine.AddFuncMap(Funcs())
	return engine
}
