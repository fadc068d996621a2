package model

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kamusis/cubepub/internal/publish"
)

// Exporter reads a manifest's documents from disk. Every call re-reads the
// file, so a retry always sends a complete, current payload.
type Exporter struct{}

var _ publish.ModelExporter = Exporter{}

// Export returns the schema document after checking it is well-formed XML
// with a Schema root element.
func (Exporter) Export(ctx context.Context, m publish.Model) ([]byte, error) {
	manifest, err := asManifest(m)
	if err != nil {
		return nil, err
	}
	data, err := readDocument(ctx, manifest.SchemaPath())
	if err != nil {
		return nil, err
	}
	root, err := rootElement(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s is not well-formed: %w", manifest.SchemaPath(), err)
	}
	if root != "Schema" {
		return nil, fmt.Errorf("schema %s has root element %q, want Schema", manifest.SchemaPath(), root)
	}
	return data, nil
}

// ExportMetadata returns the metadata document after checking it is
// well-formed XML.
func (Exporter) ExportMetadata(ctx context.Context, m publish.Model) ([]byte, error) {
	manifest, err := asManifest(m)
	if err != nil {
		return nil, err
	}
	data, err := readDocument(ctx, manifest.MetadataPath())
	if err != nil {
		return nil, err
	}
	if _, err := rootElement(data); err != nil {
		return nil, fmt.Errorf("metadata %s is not well-formed: %w", manifest.MetadataPath(), err)
	}
	return data, nil
}

func asManifest(m publish.Model) (*Manifest, error) {
	manifest, ok := m.(*Manifest)
	if !ok {
		return nil, fmt.Errorf("unsupported model type %T", m)
	}
	return manifest, nil
}

func readDocument(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// rootElement walks the whole document and returns the local name of its
// root element.
func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := ""
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok && root == "" {
			root = start.Name.Local
		}
	}
	if root == "" {
		return "", errors.New("document has no root element")
	}
	return root, nil
}
