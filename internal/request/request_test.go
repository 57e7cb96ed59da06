package request

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/policyprobe/policyprobe/internal/testgen"
)

func sampleVector() testgen.Vector {
	return testgen.Vector{
		ID: 4,
		Assignment: []testgen.AttributeValue{
			{Attribute: "role", Category: "subject", Value: "manager"},
			{Attribute: "department", Category: "subject", Value: "sales"},
			{Attribute: "action", Category: "action", Value: "read"},
		},
		Covers: map[string]bool{"rule-1": true},
	}
}

func TestBuildGroupsByCategory(t *testing.T) {
	body, err := Build(sampleVector())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var doc struct {
		XMLName    xml.Name `xml:"Request"`
		Attributes []struct {
			Category   string `xml:"Category,attr"`
			Attributes []struct {
				AttributeID string `xml:"AttributeId,attr"`
				Value       string `xml:"AttributeValue"`
			} `xml:"Attribute"`
		} `xml:"Attributes"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		t.Fatalf("generated request does not parse: %v\n%s", err, body)
	}

	if len(doc.Attributes) != 2 {
		t.Fatalf("expected 2 category groups, got %d", len(doc.Attributes))
	}
	if doc.Attributes[0].Category != "subject" || doc.Attributes[1].Category != "action" {
		t.Fatalf("categories out of first-seen order: %+v", doc.Attributes)
	}
	if len(doc.Attributes[0].Attributes) != 2 {
		t.Fatalf("subject group should hold role and department: %+v", doc.Attributes[0])
	}
	if doc.Attributes[0].Attributes[0].AttributeID != "role" || doc.Attributes[0].Attributes[0].Value != "manager" {
		t.Fatalf("unexpected first attribute: %+v", doc.Attributes[0].Attributes[0])
	}

	if !strings.HasPrefix(string(body), "<?xml") {
		t.Fatal("request document missing XML header")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(sampleVector())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := Build(sampleVector())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("two builds of the same vector differ")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(sampleVector()); got != "request_4.xml" {
		t.Fatalf("filename = %q", got)
	}
}

func TestWriteSuite(t *testing.T) {
	dir := t.TempDir()
	suite := []testgen.Vector{sampleVector()}

	if err := WriteSuite(filepath.Join(dir, "out"), suite); err != nil {
		t.Fatalf("WriteSuite failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "request_4.xml")); err != nil {
		t.Fatalf("request file missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "manifest.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest does not parse: %v", err)
	}
	if len(manifest.Requests) != 1 {
		t.Fatalf("expected 1 manifest entry, got %d", len(manifest.Requests))
	}
	entry := manifest.Requests[0]
	if entry.File != "request_4.xml" || len(entry.Covers) != 1 || entry.Covers[0] != "rule-1" {
		t.Fatalf("unexpected manifest entry: %+v", entry)
	}
}

func TestWriteArchive(t *testing.T) {
	suite := []testgen.Vector{sampleVector()}

	for _, codec := range []Compression{Gzip, Brotli} {
		var buf bytes.Buffer
		if err := WriteArchive(&buf, suite, codec); err != nil {
			t.Fatalf("WriteArchive(%s) failed: %v", codec, err)
		}

		var r io.Reader
		var err error
		if codec == Gzip {
			r, err = gzip.NewReader(&buf)
			if err != nil {
				t.Fatalf("gzip reader: %v", err)
			}
		} else {
			r = brotli.NewReader(&buf)
		}

		tr := tar.NewReader(r)
		names := map[string]bool{}
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("tar read (%s): %v", codec, err)
			}
			names[hdr.Name] = true
		}
		if !names["request_4.xml"] || !names["manifest.json"] {
			t.Fatalf("archive (%s) missing entries: %v", codec, names)
		}
	}
}

func TestWriteArchiveUnknownCodec(t *testing.T) {
	if err := WriteArchive(io.Discard, nil, Compression("zstd")); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestArchiveExtension(t *testing.T) {
	if ArchiveExtension(Gzip) != ".tar.gz" || ArchiveExtension(Brotli) != ".tar.br" {
		t.Fatal("unexpected archive extensions")
	}
}
