package geom

import "testing"

func TestClassifyAxes(t *testing.T) {
	tests := []struct {
		x, y float64
		want Direction
	}{
		{0.5, 0.1, Up},
		{0.5, 0.9, Down},
		{0.1, 0.5, Left},
		{0.9, 0.5, Right},
		{0.5, 0.05, Up},
	}

	for _, tt := range tests {
		if got := Classify(tt.x, tt.y); got != tt.want {
			t.Errorf("Classify(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestClassifyDiagonalTiesAreHorizontal(t *testing.T) {
	tests := []struct {
		x, y float64
		want Direction
	}{
		{0.25, 0.25, Left},
		{0.75, 0.25, Right},
		{0.25, 0.75, Left},
		{0.75, 0.75, Right},
		{0.5, 0.5, Right},
	}

	for _, tt := range tests {
		if got := Classify(tt.x, tt.y); got != tt.want {
			t.Errorf("Classify(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestClassifyReflection(t *testing.T) {
	points := []Point{{0.1, 0.4}, {0.2, 0.5}, {0.05, 0.9}, {0.3, 0.35}}
	for _, p := range points {
		a := Classify(p.X, p.Y)
		b := Classify(1-p.X, p.Y)
		if a.Vertical() {
			if a != b {
				t.Errorf("vertical %v reflected to %v", a, b)
			}
			continue
		}
		if !(a == Left && b == Right) && !(a == Right && b == Left) {
			t.Errorf("Classify(%v) = %v, reflected = %v, want swapped left/right", p, a, b)
		}
	}
}

func TestClassifyDiagonal(t *testing.T) {
	tests := []struct {
		x, y float64
		want AxisGroup
	}{
		{0.5, 0.9, Vertical},
		{0.5, 0.1, Vertical},
		{0.1, 0.5, Horizontal},
		{0.9, 0.5, Horizontal},
		{0.3, 0.3, Horizontal},
		{0.8, 0.6, Horizontal},
		{0.5, 0.5, Horizontal},
	}

	for _, tt := range tests {
		if got := ClassifyDiagonal(tt.x, tt.y); got != tt.want {
			t.Errorf("ClassifyDiagonal(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestClassifyHalf(t *testing.T) {
	if got := ClassifyHalf(0.49); got != Up {
		t.Errorf("ClassifyHalf(0.49) = %v, want up", got)
	}
	if got := ClassifyHalf(0.5); got != Right {
		t.Errorf("ClassifyHalf(0.5) = %v, want right", got)
	}
}

func TestPoint(t *testing.T) {
	if !(Point{0, 1}).Valid() {
		t.Error("(0, 1) should be valid")
	}
	if (Point{-0.01, 0.5}).Valid() || (Point{0.5, 1.01}).Valid() {
		t.Error("out-of-range points should be invalid")
	}
	if got := (Point{0.1, 0.2}).Manhattan(Point{0.4, 0.0}); got < 0.4999 || got > 0.5001 {
		t.Errorf("Manhattan = %v, want 0.5", got)
	}
}

func TestDirectionString(t *testing.T) {
	names := map[Direction]string{Up: "up", Right: "right", Down: "down", Left: "left", Direction(7): "direction(7)"}
	for d, want := range names {
		if got := d.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
