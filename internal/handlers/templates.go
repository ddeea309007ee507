package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const layoutFile = "base.html"

// TemplateCache holds every page parsed together with the shared layout.
type TemplateCache struct {
	cache  map[string]*template.Template
	mu     sync.RWMutex
	funcs  template.FuncMap
	logger zerolog.Logger
}

func NewTemplateCache(logger zerolog.Logger) *TemplateCache {
	return &TemplateCache{
		cache:  make(map[string]*template.Template),
		funcs:  defaultFuncs(),
		logger: logger,
	}
}

func (tc *TemplateCache) AddFunc(name string, fn interface{}) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.funcs[name] = fn
}

// Load parses every page under dir in fsys on top of the layout.
func (tc *TemplateCache) Load(fsys fs.FS, dir string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	files, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return err
	}
	layout := path.Join(dir, layoutFile)
	for _, file := range files {
		name := path.Base(file)
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New(name).Funcs(tc.funcs).ParseFS(fsys, layout, file)
		if err != nil {
			tc.logger.Error().Err(err).Str("file", file).Msg("Failed to parse template")
			return err
		}
		tc.cache[name] = tmpl
		tc.logger.Debug().Str("name", name).Msg("Cached template")
	}
	return nil
}

func (tc *TemplateCache) Get(name string) *template.Template {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.cache[name]
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return "$" + d.StringFixed(2)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("Jan 2, 2006 15:04")
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"join": strings.Join,
		"stars": func(rating interface{}) string {
			var n int
			switch v := rating.(type) {
			case int:
				n = v
			case float64:
				n = int(v + 0.5)
			}
			n = min(max(n, 0), 5)
			return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
		},
		"percent": func(n int) string {
			return fmt.Sprintf("%d%%", n)
		},
		"fieldError": func(errs interface{}, field string) string {
			if fe, ok := errs.(models.FieldErrors); ok {
				return fe[field]
			}
			return ""
		},
	}
}
