package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tbdash/internal"
)

//go:embed templates/*.html templates/*.md static/css/* static/js/*
var embeddedFiles embed.FS

// AboutMarkdown returns the source of the /about page
func AboutMarkdown() []byte {
	md, err := embeddedFiles.ReadFile("templates/about.md")
	if err != nil {
		internal.DefaultLogger.With("Templates").Warn("about page missing: %v", err)
		return nil
	}
	return md
}

// staticFS is the embedded /static tree
func staticFS() (http.FileSystem, error) {
	sub, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static filesystem: %w", err)
	}
	return http.FS(sub), nil
}

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"join": func(sep string, values []int) string {
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprint(v)
			}
			return strings.Join(parts, sep)
		},
		"first": func(values []int) int {
			if len(values) == 0 {
				return 0
			}
			return values[0]
		},
		"last": func(values []int) int {
			if len(values) == 0 {
				return 0
			}
			return values[len(values)-1]
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// renderHTML executes a template into a buffer first so a failing template
// never leaves a half-written page.
func renderHTML(templates *template.Template, w http.ResponseWriter, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, name string, data interface{}) {
	if err := renderHTML(s.templates, c.Writer, name, data); err != nil {
		s.logger.Error("template error: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Template rendering failed", "details": err.Error()})
	}
}
