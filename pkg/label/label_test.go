package label

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
)

func rec(class int, x, y float64) Record {
	return Record{Class: class, Center: geom.Point{X: x, Y: y}}
}

func TestParseLine(t *testing.T) {
	r, err := ParseLine("1 0.25 0.75 0.02 0.05")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := Record{Class: 1, Center: geom.Point{X: 0.25, Y: 0.75}, Width: 0.02, Height: 0.05, HasSize: true}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("ParseLine mismatch (-want +got):\n%s", diff)
	}

	r, err = ParseLine("0 0.1 0.2")
	if err != nil {
		t.Fatalf("ParseLine(center only): %v", err)
	}
	if r.HasSize {
		t.Error("center-only line should not have a size")
	}

	for _, bad := range []string{"", "0 0.1", "x 0.1 0.2", "0 a 0.2", "0 0.1 b"} {
		if _, err := ParseLine(bad); err == nil {
			t.Errorf("ParseLine(%q) should fail", bad)
		}
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	input := "0 0.1 0.2 0.02 0.05\n\nbroken\n1 0.3 0.4 0.02 0.05\n"
	records, skipped, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 || skipped != 1 {
		t.Errorf("Parse = %d records, %d skipped; want 2, 1", len(records), skipped)
	}
}

func TestFormat(t *testing.T) {
	got := string(Format([]Record{{Class: 1, Center: geom.Point{X: 0.5, Y: 0.05}, Width: 0.02, Height: 0.05}}))
	if want := "1 0.500000 0.050000 0.020000 0.050000\n"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
	if got := Format(nil); len(got) != 0 {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	f := File{Name: "9_3", Records: []Record{
		{Class: 0, Center: geom.Point{X: 0.1, Y: 0.2}, Width: 0.05, Height: 0.02, HasSize: true},
	}}
	path, err := f.Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "9_3.txt" {
		t.Errorf("path = %s", path)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v, want FILE_NOT_FOUND", err)
	}
	if errors.IsFatal(err) {
		t.Error("missing label must not be fatal")
	}
}

func TestEmptyFileIsValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "3_bk.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(empty): %v", err)
	}
	if len(f.Records) != 0 || f.Name != "3_bk" {
		t.Errorf("ReadFile(empty) = %+v", f)
	}
}

func TestMergeWithTag(t *testing.T) {
	gray := []File{{Name: "5", Records: []Record{rec(0, 0.1, 0.1), rec(7, 0.2, 0.2)}}}
	bright := []File{
		{Name: "5", Records: []Record{rec(1, 0.3, 0.3)}},
		{Name: "classes", Records: []Record{rec(0, 0.5, 0.5)}},
	}

	got := MergeWithTag(gray, bright, TagFor(Gray), TagFor(Bright))

	want := []File{
		{Name: "5_g", Records: []Record{rec(1, 0.1, 0.1), rec(1, 0.2, 0.2)}},
		{Name: "5_b", Records: []Record{rec(0, 0.3, 0.3)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeWithTag mismatch (-want +got):\n%s", diff)
	}

	if gray[0].Records[0].Class != 0 {
		t.Error("MergeWithTag mutated its input")
	}
}

func TestMergeByName(t *testing.T) {
	a := []File{
		{Name: "2", Records: []Record{rec(5, 0.1, 0.1)}},
		{Name: "1", Records: []Record{rec(5, 0.2, 0.2)}},
		{Name: "only-a", Records: []Record{rec(5, 0.3, 0.3)}},
	}
	b := []File{
		{Name: "1", Records: []Record{rec(5, 0.4, 0.4), rec(5, 0.5, 0.5)}},
		{Name: "2", Records: nil},
	}

	got := MergeByName(a, b, 0, 1)

	want := []File{
		{Name: "1", Records: []Record{rec(0, 0.2, 0.2), rec(1, 0.4, 0.4), rec(1, 0.5, 0.5)}},
		{Name: "2", Records: []Record{rec(0, 0.1, 0.1)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeByName mismatch (-want +got):\n%s", diff)
	}
}

func TestResizeByDirection(t *testing.T) {
	size := Size{W: 0.02, H: 0.05}
	records := []Record{
		rec(1, 0.5, 0.05),
		rec(1, 0.95, 0.5),
		rec(0, 1.2, 0.5),
	}

	kept, dropped := ResizeByDirection(records, size)

	if len(kept) != 2 || len(dropped) != 1 {
		t.Fatalf("kept %d dropped %d, want 2 and 1", len(kept), len(dropped))
	}
	if kept[0].Width != 0.02 || kept[0].Height != 0.05 {
		t.Errorf("up record size = %vx%v, want vertical template 0.02x0.05", kept[0].Width, kept[0].Height)
	}
	if kept[1].Width != 0.05 || kept[1].Height != 0.02 {
		t.Errorf("right record size = %vx%v, want swapped 0.05x0.02", kept[1].Width, kept[1].Height)
	}
	if dropped[0].Center.X != 1.2 {
		t.Error("out-of-range record should be dropped unchanged")
	}
}

func TestGrayMergeThenResize(t *testing.T) {
	// Two gray records tagged class 1; the first sits near the top edge.
	gray := []File{{Name: "7", Records: []Record{rec(0, 0.5, 0.05), rec(0, 0.05, 0.5)}}}
	merged := MergeWithTag(gray, nil, TagFor(Gray), TagFor(Bright))
	if len(merged) != 1 || merged[0].Name != "7_g" {
		t.Fatalf("merged = %+v", merged)
	}

	size := Size{W: 0.02, H: 0.05}
	kept, _ := ResizeByDirection(merged[0].Records, size)
	if kept[0].Class != 1 || kept[1].Class != 1 {
		t.Error("gray records should carry class 1")
	}
	if kept[0].Width != size.W || kept[0].Height != size.H {
		t.Errorf("up record = %vx%v, want %vx%v", kept[0].Width, kept[0].Height, size.W, size.H)
	}
}

func TestResizeByDiagonal(t *testing.T) {
	size := Size{W: 0.02, H: 0.05}
	kept, _ := ResizeByDiagonal([]Record{rec(0, 0.5, 0.9), rec(0, 0.1, 0.5)}, size)
	if kept[0].Width != 0.02 || kept[0].Height != 0.05 {
		t.Errorf("vertical group size = %vx%v", kept[0].Width, kept[0].Height)
	}
	if kept[1].Width != 0.05 || kept[1].Height != 0.02 {
		t.Errorf("horizontal group size = %vx%v", kept[1].Width, kept[1].Height)
	}
}

func TestParitySplit(t *testing.T) {
	for n := 0; n <= 7; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		even, odd := ParitySplit(items)
		if len(even)+len(odd) != n {
			t.Errorf("n=%d: %d + %d != n", n, len(even), len(odd))
		}
		for i, v := range even {
			if v != 2*i {
				t.Errorf("n=%d: even[%d] = %d, want %d", n, i, v, 2*i)
			}
		}
		for i, v := range odd {
			if v != 2*i+1 {
				t.Errorf("n=%d: odd[%d] = %d, want %d", n, i, v, 2*i+1)
			}
		}
	}
}

func TestDirHelpers(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	for _, n := range []string{"1.txt", "2.txt", "classes.txt", "img.png"} {
		os.WriteFile(filepath.Join(a, n), []byte("0 0.5 0.5\n"), 0644)
	}
	for _, n := range []string{"2.txt", "3.txt"} {
		os.WriteFile(filepath.Join(b, n), []byte("1 0.5 0.5\n"), 0644)
	}

	names, err := ListDir(a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1.txt", "2.txt"}, names); diff != "" {
		t.Errorf("ListDir mismatch (-want +got):\n%s", diff)
	}

	common, err := CommonNames(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"2.txt"}, common); diff != "" {
		t.Errorf("CommonNames mismatch (-want +got):\n%s", diff)
	}

	files, failed, err := ReadDir(a)
	if err != nil || len(failed) != 0 || len(files) != 2 {
		t.Errorf("ReadDir = %d files, %v failed, err %v", len(files), failed, err)
	}

	merged, failed, err := MergeDirs(a, b, TagFor(Gray), TagFor(Bright))
	if err != nil || len(failed) != 0 {
		t.Fatalf("MergeDirs: %v %v", failed, err)
	}
	var got []string
	for _, f := range merged {
		got = append(got, fmt.Sprintf("%s:%d", f.Name, f.Records[0].Class))
	}
	if diff := cmp.Diff([]string{"1_g:1", "2_g:1", "2_b:0", "3_b:0"}, got); diff != "" {
		t.Errorf("MergeDirs mismatch (-want +got):
%s", diff)
	}
}

func TestStyle(t *testing.T) {
	if Gray.Class() != 1 || Bright.Class() != 0 {
		t.Error("style classes changed")
	}
	if s, err := ParseStyle("g"); err != nil || s != Gray {
		t.Errorf("ParseStyle(g) = %v, %v", s, err)
	}
	if _, err := ParseStyle("red"); err == nil {
		t.Error("ParseStyle(red) should fail")
	}
	if s, ok := StyleOf(0); !ok || s != Bright {
		t.Errorf("StyleOf(0) = %v, %v", s, ok)
	}
	if _, ok := StyleOf(3); ok {
		t.Error("StyleOf(3) should be unknown")
	}
}
