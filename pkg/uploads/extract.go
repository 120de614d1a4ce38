package uploads

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind classifies an upload for the chat client.
const (
	KindDocument = "document"
	KindImage    = "image"
	KindFile     = "file"
)

// Extraction is the result of analyzing an upload: documents carry their
// extracted text, images carry the public URL they can be fetched from.
type Extraction struct {
	Kind    string
	Content string
}

// Extract analyzes a stored upload by MIME type. PDFs and text files yield
// their text; images yield publicBase + /uploads/ + name; everything else is
// an opaque file.
func (d *Dir) Extract(name, mimeType, publicBase string) (Extraction, error) {
	switch {
	case mimeType == "application/pdf":
		text, err := extractPDFText(filepath.Join(d.path, name))
		if err != nil {
			return Extraction{}, fmt.Errorf("extract pdf text: %w", err)
		}
		return Extraction{Kind: KindDocument, Content: text}, nil

	case strings.HasPrefix(mimeType, "text/"):
		data, err := d.ReadFile(name)
		if err != nil {
			return Extraction{}, fmt.Errorf("read text upload: %w", err)
		}
		return Extraction{Kind: KindDocument, Content: string(data)}, nil

	case strings.HasPrefix(mimeType, "image/"):
		return Extraction{Kind: KindImage, Content: publicBase + urlMarker + name}, nil

	default:
		return Extraction{Kind: KindFile}, nil
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
