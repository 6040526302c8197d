package noise

import (
	"bytes"
	"encoding/csv"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func flat(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestNoneLeavesImageUnchanged(t *testing.T) {
	src := flat(4, 4, 100)
	none, _ := LevelByName("none")
	if got := none.Apply(src, Source(1, 0)); got != image.Image(src) {
		t.Error("none level should return its input")
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	src := flat(16, 16, 128)
	severe, _ := LevelByName("severe")

	a := severe.Apply(src, Source(42, 3)).(*image.Gray)
	b := severe.Apply(src, Source(42, 3)).(*image.Gray)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same seed and index should give the same noise")
	}
	c := severe.Apply(src, Source(42, 4)).(*image.Gray)
	if bytes.Equal(a.Pix, c.Pix) {
		t.Error("different index should give different noise")
	}
	if src.Pix[0] != 128 {
		t.Error("input modified")
	}
}

func TestNoiseStrengthOrdering(t *testing.T) {
	src := flat(64, 64, 128)
	spread := func(name string) float64 {
		l, _ := LevelByName(name)
		g := l.Apply(src, Source(7, 0)).(*image.Gray)
		var sum float64
		for _, v := range g.Pix {
			d := float64(v) - 128
			sum += d * d
		}
		return sum / float64(len(g.Pix))
	}
	mild, severe := spread("mild"), spread("severe")
	if !(severe > mild) {
		t.Errorf("severe variance %.1f should exceed mild %.1f", severe, mild)
	}
}

func TestApplyLocksChannels(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 90, 90, 90, 255
	}
	mild, _ := LevelByName("mild")
	out := mild.Apply(src, Source(1, 1)).(*image.RGBA)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := out.RGBAAt(x, y)
			if c.R != c.G || c.G != c.B || c.A != 255 {
				t.Fatalf("pixel (%d,%d) = %v, want locked channels", x, y, c)
			}
		}
	}
}

func TestBlackStaysDarkUnderPoisson(t *testing.T) {
	l := Level{Name: "shot", Alpha: 10}
	out := l.Apply(flat(4, 4, 0), Source(1, 0)).(*image.Gray)
	for _, v := range out.Pix {
		if v != 0 {
			t.Fatalf("Poisson noise on black gave %d", v)
		}
	}
}

func TestLevelByName(t *testing.T) {
	if _, err := LevelByName("extreme"); err == nil {
		t.Error("unknown level should fail")
	}
	m, _ := LevelByName("moderate")
	if m.Alpha != 20 || m.Sigma2 != 0.005 {
		t.Errorf("moderate = %+v", m)
	}
}

func TestWriteLog(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{
		{Filename: "4.png", Level: Levels[0], Output: "out/none/4.png"},
		{Filename: "4.png", Level: Levels[1], Output: "out/mild/4.png"},
	}
	if err := WriteLog(&buf, entries); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		LogHeader,
		{"4.png", "none", "None", "0", "out/none/4.png"},
		{"4.png", "mild", "50", "0.001", "out/mild/4.png"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}
