package request

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/policyprobe/policyprobe/internal/testgen"
)

// Compression selects the archive codec.
type Compression string

const (
	Gzip   Compression = "gzip"
	Brotli Compression = "brotli"
)

// Manifest is written alongside the request documents so downstream harnesses
// know which rules each request exercises.
type Manifest struct {
	Requests []ManifestEntry `json:"requests"`
}

// ManifestEntry describes one exported request document.
type ManifestEntry struct {
	File   string   `json:"file"`
	Covers []string `json:"covers"`
}

// WriteSuite exports one request document per vector into dir, plus a
// manifest.json mapping files to the rules they cover. The directory is
// created if needed.
func WriteSuite(dir string, suite []testgen.Vector) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	manifest := Manifest{Requests: make([]ManifestEntry, 0, len(suite))}
	for _, v := range suite {
		body, err := Build(v)
		if err != nil {
			return err
		}
		name := Filename(v)
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		manifest.Requests = append(manifest.Requests, ManifestEntry{
			File:   name,
			Covers: v.CoveredRules(),
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	log.Printf("exported %d requests to %s", len(suite), dir)
	return nil
}

// WriteArchive streams the suite as a compressed tar archive: the request
// documents plus the manifest, compressed with the chosen codec.
func WriteArchive(w io.Writer, suite []testgen.Vector, codec Compression) error {
	var cw io.WriteCloser
	switch codec {
	case Gzip, "":
		cw = gzip.NewWriter(w)
	case Brotli:
		cw = brotli.NewWriter(w)
	default:
		return fmt.Errorf("unknown archive compression %q", codec)
	}

	tw := tar.NewWriter(cw)
	now := time.Now()

	writeEntry := func(name string, body []byte) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(body)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(body); err != nil {
			return fmt.Errorf("write tar body for %s: %w", name, err)
		}
		return nil
	}

	manifest := Manifest{Requests: make([]ManifestEntry, 0, len(suite))}
	for _, v := range suite {
		body, err := Build(v)
		if err != nil {
			return err
		}
		name := Filename(v)
		if err := writeEntry(name, body); err != nil {
			return err
		}
		manifest.Requests = append(manifest.Requests, ManifestEntry{
			File:   name,
			Covers: v.CoveredRules(),
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeEntry("manifest.json", append(data, '\n')); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	return nil
}

// ArchiveExtension returns the conventional file extension for a codec.
func ArchiveExtension(codec Compression) string {
	if codec == Brotli {
		return ".tar.br"
	}
	return ".tar.gz"
}
