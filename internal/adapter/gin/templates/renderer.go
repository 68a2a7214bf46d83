// Package templates loads the embedded HTML pages and renders them for gin.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/render"

	"newspaper/internal/adapter/gin/urls"
)

//go:embed html
var files embed.FS

const layout = "base.html"

// Listener is called with the template name and data on every render.
type Listener func(name string, data any)

// Renderer implements gin's render.HTMLRender over the embedded pages.
// Every page is parsed together with base.html.
type Renderer struct {
	pages map[string]*template.Template

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// New parses every embedded page.
func New() (*Renderer, error) {
	root, err := fs.Sub(files, "html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		pages:     map[string]*template.Template{},
		listeners: map[int]Listener{},
	}

	err = fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == layout || !strings.HasSuffix(path, ".html") {
			return nil
		}

		t, err := template.New(path).Funcs(funcs).ParseFS(root, layout, path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		r.pages[path] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

var funcs = template.FuncMap{
	"url": urls.Reverse,
	"add": func(a, b int64) int64 { return a + b },
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.pages[name]
	if !ok {
		return missing(name)
	}

	r.mu.RLock()
	for _, l := range r.listeners {
		l(name, data)
	}
	r.mu.RUnlock()

	return render.HTML{Template: t, Name: layout, Data: data}
}

// Subscribe registers l and returns a function removing it.
func (r *Renderer) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = l

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Names lists the loaded pages.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.pages))
	for n := range r.pages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type missing string

func (m missing) Render(http.ResponseWriter) error {
	return fmt.Errorf("template %q does not exist", string(m))
}

func (m missing) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}
