// Package label reads, writes and rewrites YOLO-style label files.
//
// A label file holds one record per line:
//
//	class center_x center_y width height
//
// with all but the class expressed as fractions of the image size. An empty
// file is valid and means "no objects" (background images).
//
// The transformations in this package never mutate their inputs; they
// return new record slices.
package label

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
)

// Ext is the label file extension.
const Ext = ".txt"

// ClassesFile is the metadata file some labeling tools drop next to the
// label files. It is not a label file.
const ClassesFile = "classes.txt"

// Record is one labeled object.
type Record struct {
	Class  int
	Center geom.Point
	Width  float64
	Height float64

	// HasSize is false when the source line carried only a class and a
	// center.
	HasSize bool
}

// Direction classifies the record's center with geom.Classify.
func (r Record) Direction() geom.Direction {
	return geom.ClassifyPoint(r.Center)
}

// String formats r as one label line.
func (r Record) String() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", r.Class, r.Center.X, r.Center.Y, r.Width, r.Height)
}

// File is the ordered record list of one image.
type File struct {
	// Name is the base name without extension, e.g. "9", "9_g" or "9_14".
	Name    string
	Records []Record
}

// ParseLine parses one label line.
// At least class and center are required; width and height are optional.
func ParseLine(line string) (Record, error) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("want at least 3 fields, got %d", len(parts))
	}

	class, err := strconv.Atoi(parts[0])
	if err != nil {
		return Record{}, fmt.Errorf("class %q: %w", parts[0], err)
	}
	x, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Record{}, fmt.Errorf("center x %q: %w", parts[1], err)
	}
	y, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("center y %q: %w", parts[2], err)
	}

	r := Record{Class: class, Center: geom.Point{X: x, Y: y}}
	if len(parts) >= 5 {
		w, errW := strconv.ParseFloat(parts[3], 64)
		h, errH := strconv.ParseFloat(parts[4], 64)
		if errW == nil && errH == nil {
			r.Width, r.Height, r.HasSize = w, h, true
		}
	}
	return r, nil
}

// Parse reads records from r. Blank lines are ignored; malformed lines are
// skipped and counted.
func Parse(r io.Reader) (records []Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, perr := ParseLine(line)
		if perr != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, sc.Err()
}

// Format renders records as label file content, one line per record with a
// trailing newline. No records yields empty content.
func Format(records []Record) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// BaseName strips the directory and the extension from a label or image
// path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadFile reads a label file. Failures are SKIPPABLE_INPUT errors.
func ReadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "label %s", path)
		}
		return File{}, errors.Wrap(errors.ErrCodeSkippableInput, err, "open label %s", path)
	}
	defer f.Close()

	records, _, err := Parse(f)
	if err != nil {
		return File{}, errors.Wrap(errors.ErrCodeSkippableInput, err, "read label %s", path)
	}
	return File{Name: BaseName(path), Records: records}, nil
}

// WriteFile writes records to path, creating parent directories.
func WriteFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, Format(records), 0644)
}

// Write writes f into dir as <Name>.txt and returns the path.
func (f File) Write(dir string) (string, error) {
	if err := errors.ValidateBaseName(f.Name); err != nil {
		return "", err
	}
	path := filepath.Join(dir, f.Name+Ext)
	return path, WriteFile(path, f.Records)
}
