// Package mzxml extracts the few scan attributes the metadata reconciler
// needs from mzXML files: polarity, the scan mz range, the originating raw
// file name, and a content checksum.
//
// This is deliberately not a general mzXML reader. Spectra payloads are
// skipped; the decoder streams tokens so large files are never held in memory.
package mzxml

import (
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/html/charset"
)

// Reconciler-facing polarity values. mzXML writes "+" / "-" scan attributes;
// these are normalized to the long form the LCMS metadata file uses.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

var (
	// ErrMixedPolarity is returned when scans within one file disagree on
	// polarity. One mzXML file is one instrument run; mixed polarity means the
	// file cannot supply a single reconciled value.
	ErrMixedPolarity = errors.New("mzXML file contains scans with mixed polarity")

	// ErrNoScans is returned for files with no scan elements at all.
	ErrNoScans = errors.New("mzXML file contains no scans")
)

type (
	// File holds the parsed attributes of one mzXML file used as reconciler
	// inputs, plus provenance (raw file name, checksum).
	File struct {
		// Path is the mzXML path as given to the parser.
		Path string

		// Name is the file basename without the .mzXML extension. By default
		// this is assumed to equal the sample data header it belongs to.
		Name string

		// RawFileName is the originating vendor raw file recorded in the
		// parentFile element, if present.
		RawFileName string

		// Checksum is the lowercase hex BLAKE2b-256 digest of the file bytes.
		Checksum string

		// Polarity is PolarityPositive or PolarityNegative, or empty when no
		// scan carried a polarity attribute.
		Polarity string

		// MzMin and MzMax bound the scan window across all scans.
		MzMin float64
		MzMax float64

		// ScanCount is the number of scan elements seen.
		ScanCount int

		rangeSeen bool
	}

	// scanElement maps the scan attributes of interest. Remaining attributes
	// and the nested peaks payload are ignored.
	scanElement struct {
		Polarity string  `xml:"polarity,attr"`
		LowMz    float64 `xml:"lowMz,attr"`
		HighMz   float64 `xml:"highMz,attr"`
		StartMz  float64 `xml:"startMz,attr"`
		EndMz    float64 `xml:"endMz,attr"`
	}

	// parentFileElement maps the parentFile provenance element.
	parentFileElement struct {
		FileName string `xml:"fileName,attr"`
	}
)

// ParseFile opens and parses one mzXML file.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("failed to open mzXML file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	return Parse(f, path)
}

// Parse reads mzXML content from r. The checksum is computed over the exact
// bytes consumed by the XML decoder, so parsing and hashing share one pass.
func Parse(r io.Reader, path string) (*File, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checksum: %w", err)
	}

	result := &File{
		Path: path,
		Name: BaseName(path),
	}

	decoder := xml.NewDecoder(io.TeeReader(r, hasher))
	// Vendor converters commonly declare ISO-8859-1.
	decoder.CharsetReader = charset.NewReaderLabel

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("malformed mzXML in %s: %w", path, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "parentFile":
			var parent parentFileElement
			if err := decoder.DecodeElement(&parent, &start); err != nil {
				return nil, fmt.Errorf("malformed parentFile element in %s: %w", path, err)
			}

			// First parentFile wins; converters list the vendor raw file first.
			if result.RawFileName == "" {
				result.RawFileName = filepath.Base(parent.FileName)
			}
		case "scan":
			var scan scanElement
			if err := decoder.DecodeElement(&scan, &start); err != nil {
				return nil, fmt.Errorf("malformed scan element in %s: %w", path, err)
			}

			if err := result.applyScan(scan); err != nil {
				return nil, err
			}
		}
	}

	if result.ScanCount == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoScans, path)
	}

	result.Checksum = hex.EncodeToString(hasher.Sum(nil))

	return result, nil
}

// applyScan folds one scan's attributes into the file aggregate.
func (f *File) applyScan(scan scanElement) error {
	polarity, err := normalizePolarity(scan.Polarity)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}

	if polarity != "" {
		if f.Polarity != "" && f.Polarity != polarity {
			return fmt.Errorf("%w: %s", ErrMixedPolarity, f.Path)
		}

		f.Polarity = polarity
	}

	low, high := scan.LowMz, scan.HighMz
	if low == 0 && high == 0 {
		// Some converters only write the instrument window.
		low, high = scan.StartMz, scan.EndMz
	}

	if low != 0 || high != 0 {
		if !f.rangeSeen || low < f.MzMin {
			f.MzMin = low
		}

		if !f.rangeSeen || high > f.MzMax {
			f.MzMax = high
		}

		f.rangeSeen = true
	}

	f.ScanCount++

	return nil
}

// normalizePolarity maps mzXML polarity codes onto the long form.
func normalizePolarity(raw string) (string, error) {
	switch strings.TrimSpace(raw) {
	case "":
		return "", nil
	case "+":
		return PolarityPositive, nil
	case "-":
		return PolarityNegative, nil
	default:
		return "", fmt.Errorf("unrecognized scan polarity %q", raw)
	}
}

// BaseName strips the directory and the mzXML extension from a path,
// case-insensitively: "dir/BAT-xz971.mzXML" -> "BAT-xz971".
func BaseName(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".mzxml") {
		base = base[:len(base)-len(filepath.Ext(base))]
	}

	return base
}
