// Package metadata resolves project metadata documents from an IPFS gateway.
package metadata

import (
	"errors"

	"github.com/tidwall/gjson"
)

// UntitledProject is displayed when a project has no usable name.
const UntitledProject = "Untitled project"

// ErrNotObject is returned for documents that are not JSON objects.
var ErrNotObject = errors.New("metadata is not a JSON object")

// Field is one top-level key of the document, in document order.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is a parsed project metadata document.
type Metadata struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	LogoURI     string  `json:"logoUri,omitempty"`
	InfoURI     string  `json:"infoUri,omitempty"`
	Twitter     string  `json:"twitter,omitempty"`
	Fields      []Field `json:"fields"`
}

// Parse parses a metadata document.
func Parse(raw []byte) (*Metadata, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("metadata is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrNotObject
	}

	m := &Metadata{
		Name:        doc.Get("name").String(),
		Description: doc.Get("description").String(),
		LogoURI:     doc.Get("logoUri").String(),
		InfoURI:     doc.Get("infoUri").String(),
		Twitter:     doc.Get("twitter").String(),
	}
	doc.ForEach(func(key, value gjson.Result) bool {
		v := value.String()
		if value.IsObject() || value.IsArray() {
			v = value.Raw
		}
		m.Fields = append(m.Fields, Field{Key: key.String(), Value: v})
		return true
	})
	return m, nil
}

// DisplayName returns the project name, or UntitledProject for nil metadata
// or an empty name.
func (m *Metadata) DisplayName() string {
	if m == nil || m.Name == "" {
		return UntitledProject
	}
	return m.Name
}
