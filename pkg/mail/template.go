package mail

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"
)

// RenderTemplate executes the text template at path with data. Unknown keys are errors.
func RenderTemplate(path string, data interface{}) (string, error) {
	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", path, err)
	}
	return buf.String(), nil
}
