// Package request turns selected test vectors into XACML request documents
// and exports them as files or compressed archives.
package request

import (
	"encoding/xml"
	"fmt"

	"github.com/policyprobe/policyprobe/internal/testgen"
)

type requestDoc struct {
	XMLName    xml.Name        `xml:"Request"`
	Attributes []attributesDoc `xml:"Attributes"`
}

type attributesDoc struct {
	Category   string         `xml:"Category,attr"`
	Attributes []attributeDoc `xml:"Attribute"`
}

type attributeDoc struct {
	AttributeID string `xml:"AttributeId,attr"`
	Value       string `xml:"AttributeValue"`
}

// Build serializes a vector's assignment into an XACML 3.0 request document.
// Attributes are grouped by category; categories appear in the order they
// first occur in the assignment, so output is deterministic for a fixed
// vector.
func Build(v testgen.Vector) ([]byte, error) {
	doc := requestDoc{}
	index := make(map[string]int)

	for _, av := range v.Assignment {
		i, ok := index[av.Category]
		if !ok {
			i = len(doc.Attributes)
			index[av.Category] = i
			doc.Attributes = append(doc.Attributes, attributesDoc{Category: av.Category})
		}
		doc.Attributes[i].Attributes = append(doc.Attributes[i].Attributes, attributeDoc{
			AttributeID: av.Attribute,
			Value:       av.Value,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal request for vector %d: %w", v.ID, err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Filename returns the canonical export name for a vector's request document.
func Filename(v testgen.Vector) string {
	return fmt.Sprintf("request_%d.xml", v.ID)
}
