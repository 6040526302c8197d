package label

import (
	"maps"
	"slices"

	"github.com/matzehuels/defectset/pkg/geom"
)

// Size is a label box size as a fraction of the image. W and H describe the
// vertical (Up/Down) orientation; horizontal boxes use the transpose.
type Size struct {
	W float64 `toml:"w"`
	H float64 `toml:"h"`
}

// For returns the box size for a direction.
func (s Size) For(d geom.Direction) (w, h float64) {
	if d.Vertical() {
		return s.W, s.H
	}
	return s.H, s.W
}

// Tag describes how records from one source are marked when merged.
type Tag struct {
	Class  int
	Suffix string
}

// TagFor returns the merge tag of a style.
func TagFor(s Style) Tag {
	return Tag{Class: s.Class(), Suffix: s.Suffix()}
}

// WithClass returns a copy of records with every class set to class.
func WithClass(records []Record, class int) []Record {
	out := slices.Clone(records)
	for i := range out {
		out[i].Class = class
	}
	return out
}

// MergeWithTag copies every file of a and b into one set. Records from a get
// tagA's class and names suffixed with "_"+tagA.Suffix, and likewise for b.
// Files named after ClassesFile are not label files and are dropped.
func MergeWithTag(a, b []File, tagA, tagB Tag) []File {
	out := make([]File, 0, len(a)+len(b))
	add := func(files []File, tag Tag) {
		for _, f := range files {
			if f.Name+Ext == ClassesFile {
				continue
			}
			out = append(out, File{
				Name:    f.Name + "_" + tag.Suffix,
				Records: WithClass(f.Records, tag.Class),
			})
		}
	}
	add(a, tagA)
	add(b, tagB)
	return out
}

// MergeByName joins the files present in both a and b under their shared
// name. The merged file lists a's records (class set to classA) followed by
// b's records (class set to classB). Results are sorted by name.
func MergeByName(a, b []File, classA, classB int) []File {
	byName := make(map[string]File, len(b))
	for _, f := range b {
		byName[f.Name] = f
	}

	merged := make(map[string]File)
	for _, fa := range a {
		fb, ok := byName[fa.Name]
		if !ok {
			continue
		}
		records := append(WithClass(fa.Records, classA), WithClass(fb.Records, classB)...)
		merged[fa.Name] = File{Name: fa.Name, Records: records}
	}

	names := slices.Sorted(maps.Keys(merged))
	out := make([]File, 0, len(names))
	for _, n := range names {
		out = append(out, merged[n])
	}
	return out
}

// ResizeByDirection sets each record's box size from the direction of its
// center: (W, H) for Up/Down, (H, W) for Left/Right. Records whose center is
// outside [0,1]² are returned in dropped and not clamped.
func ResizeByDirection(records []Record, size Size) (kept, dropped []Record) {
	return resize(records, func(r Record) (float64, float64) {
		return size.For(r.Direction())
	})
}

// ResizeByDiagonal is ResizeByDirection driven by geom.ClassifyDiagonal.
// It is used for bright labels in the parity scenario.
func ResizeByDiagonal(records []Record, size Size) (kept, dropped []Record) {
	return resize(records, func(r Record) (float64, float64) {
		if geom.ClassifyDiagonal(r.Center.X, r.Center.Y) == geom.Vertical {
			return size.W, size.H
		}
		return size.H, size.W
	})
}

func resize(records []Record, sizeOf func(Record) (float64, float64)) (kept, dropped []Record) {
	kept = make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Center.Valid() {
			dropped = append(dropped, r)
			continue
		}
		r.Width, r.Height = sizeOf(r)
		r.HasSize = true
		kept = append(kept, r)
	}
	return kept, dropped
}

// ParitySplit splits items by index parity: indices 0, 2, 4, ... go to even
// and 1, 3, 5, ... to odd. Relative order is preserved.
func ParitySplit[T any](items []T) (even, odd []T) {
	even = make([]T, 0, (len(items)+1)/2)
	odd = make([]T, 0, len(items)/2)
	for i, it := range items {
		if i%2 == 0 {
			even = append(even, it)
		} else {
			odd = append(odd, it)
		}
	}
	return even, odd
}
