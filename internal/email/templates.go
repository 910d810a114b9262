package email

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const baseTemplateFile = "base.html"

// TemplateManager реализует TemplateRenderer для управления шаблонами email.
// Каждый шаблон определяет блок "content", который вставляется в base.html.
type TemplateManager struct {
	base      *template.Template
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager загружает встроенные шаблоны
func NewTemplateManager() (*TemplateManager, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return NewTemplateManagerFS(sub)
}

// NewTemplateManagerFS загружает base.html и все *.html из fsys
func NewTemplateManagerFS(fsys fs.FS) (*TemplateManager, error) {
	baseContent, err := fs.ReadFile(fsys, baseTemplateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}
	base, err := template.New("base").Funcs(templateFuncs).Parse(string(baseContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	tm := &TemplateManager{
		base:      base,
		templates: make(map[string]*template.Template),
	}

	files, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file == baseTemplateFile {
			continue
		}
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", file, err)
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		if err := tm.AddTemplate(name, string(content)); err != nil {
			return nil, fmt.Errorf("failed to add template %s: %w", name, err)
		}
	}

	return tm, nil
}

var templateFuncs = template.FuncMap{
	"money": func(v any) string {
		switch n := v.(type) {
		case float64:
			return fmt.Sprintf("$%.2f", n)
		case int:
			return fmt.Sprintf("$%d.00", n)
		default:
			return fmt.Sprintf("$%v", n)
		}
	},
}

// AddTemplate добавляет шаблон в менеджер
func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := tm.base.Clone()
	if err != nil {
		return err
	}
	if _, err := tpl.New(name).Parse(templateStr); err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()

	return nil
}

// Render рендерит шаблон с данными
func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func (tm *TemplateManager) Has(templateName string) bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	_, ok := tm.templates[templateName]
	return ok
}

// TemplateNames возвращает список имен загруженных шаблонов
func (tm *TemplateManager) TemplateNames() []string {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	names := make([]string, 0, len(tm.templates))
	for name := range tm.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
