// Пакет web — встроенные HTML-шаблоны imghost.
// Шаблоны компилируются в бинарник через embed.FS; экранирование
// всех интерполируемых значений обеспечивает html/template.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Templates — разобранные шаблоны страниц (gallery, view).
var Templates = template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl"))
