package certificates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/google/uuid"

	"github.com/benevia/backend/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var certificateTmpl = template.Must(template.ParseFS(templateFS, "templates/certificate.html.tmpl"))

// Render produces the HTML certificate artifact for a snapshot.
func Render(snapshot *models.CertificateSnapshot, certificateID uuid.UUID) ([]byte, error) {
	var buf bytes.Buffer
	err := certificateTmpl.Execute(&buf, struct {
		Snapshot      *models.CertificateSnapshot
		CertificateID uuid.UUID
	}{snapshot, certificateID})
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
