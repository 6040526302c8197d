package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/config"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/pipeline"
	"github.com/matzehuels/defectset/pkg/pool"
)

func TestRootCommandRegistersStages(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, path := range [][]string{
		{"labels", "random"},
		{"labels", "parity"},
		{"labels", "resize"},
		{"labels", "merge"},
		{"images"},
		{"enhance"},
		{"split"},
		{"masks"},
		{"noise"},
		{"collect"},
		{"run", "random"},
		{"run", "parity"},
		{"config"},
		{"cache", "clear"},
		{"cache", "path"},
		{"cache", "stats"},
		{"completion"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}

func TestOptionFlagsAreBound(t *testing.T) {
	for _, names := range [][]string{samplingFlags, imageFlags, runFlags} {
		for _, name := range names {
			if _, ok := optionFlags[name]; !ok {
				t.Errorf("flag %q has no option binding", name)
			}
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOptionsPrecedence(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "run.toml")
	writeFile(t, cfg, `
seed = 7
workers = 3

[sampling]
gray_count = 4
bright_count = 5

[partition]
train = [1]
valid = [2]
test = [3]
`)

	c := New(io.Discard, LogInfo)
	c.configPath = cfg

	var flags pipeline.Options
	cmd := &cobra.Command{Use: "test"}
	bound := bindOptions(cmd, &flags, "gray-count", "bright-count", "seed", "train", "gray-patch", "levels")
	if err := cmd.ParseFlags([]string{"--gray-count", "2", "--train", "1,4", "--gray-patch", "6x12", "--levels", "none,severe"}); err != nil {
		t.Fatal(err)
	}

	opts, err := c.options(cmd, &flags, bound)
	if err != nil {
		t.Fatal(err)
	}
	if opts.GrayCount != 2 {
		t.Errorf("GrayCount = %d, want the flag value 2", opts.GrayCount)
	}
	if opts.BrightCount != 5 || opts.Seed != 7 || opts.Workers != 3 {
		t.Errorf("unset flags overrode the config: bright=%d seed=%d workers=%d", opts.BrightCount, opts.Seed, opts.Workers)
	}
	want := partition.Config{Train: []int{1, 4}, Valid: []int{2}, Test: []int{3}}
	if diff := cmp.Diff(want, opts.Partitions); diff != "" {
		t.Errorf("Partitions mismatch (-want +got):\n%s", diff)
	}
	if opts.GrayPatch != (patch.Size{W: 6, H: 12}) {
		t.Errorf("GrayPatch = %+v", opts.GrayPatch)
	}
	if len(opts.NoiseLevels) != 2 || opts.NoiseLevels[1] != noise.Levels[3] {
		t.Errorf("NoiseLevels = %+v", opts.NoiseLevels)
	}
	if opts.Logger != c.Logger {
		t.Error("options should carry the CLI logger")
	}
}

func TestOptionsBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, cfg, "scenario = \"grid\"\n")

	c := New(io.Discard, LogInfo)
	c.configPath = cfg
	if _, err := c.options(&cobra.Command{Use: "test"}, nil, nil); err == nil {
		t.Error("expected an error for an invalid config")
	}
}

func TestFlagValues(t *testing.T) {
	var ps patchSizeValue
	if err := ps.Set("8X10"); err != nil || ps != (patchSizeValue{W: 8, H: 10}) {
		t.Errorf("patch size = %+v, %v", ps, err)
	}
	if ps.String() != "8x10" {
		t.Errorf("patch size String() = %q", ps.String())
	}
	for _, bad := range []string{"8", "ax10", "8x", "8x1.5"} {
		if err := ps.Set(bad); err == nil {
			t.Errorf("patch size %q should not parse", bad)
		}
	}

	var ls labelSizeValue
	if err := ls.Set("0.02x0.05"); err != nil || ls != (labelSizeValue{W: 0.02, H: 0.05}) {
		t.Errorf("label size = %+v, %v", ls, err)
	}

	var lv levelsValue
	if err := lv.Set("mild, moderate"); err != nil {
		t.Fatal(err)
	}
	if lv.String() != "mild,moderate" {
		t.Errorf("levels String() = %q", lv.String())
	}
	if err := lv.Set("loud"); err == nil {
		t.Error("unknown level should not parse")
	}
}

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.Out = &out
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "gray", "1.txt"), "1 0.2 0.2 0.01 0.05\n")
	writeFile(t, filepath.Join(dir, "bright", "1.txt"), "0 0.7 0.7 0.01 0.05\n")
	writeFile(t, filepath.Join(dir, "bright", "2.txt"), "0 0.5 0.5 0.01 0.05\n")
	labels := filepath.Join(dir, "labels")

	out, err := execute(t, "labels", "merge",
		"--gray", filepath.Join(dir, "gray"),
		"--bright", filepath.Join(dir, "bright"),
		"--labels-out", labels,
		"--workers", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "merge") {
		t.Errorf("output should contain the stage summary:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(labels, "1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "0 ") || !strings.HasPrefix(lines[1], "1 ") {
		t.Errorf("merged file = %q, want bright then gray", data)
	}
	if _, err := os.Stat(filepath.Join(labels, "2.txt")); !os.IsNotExist(err) {
		t.Error("a file present in one directory only should not be merged")
	}
}

func TestStageCommandConfigurationError(t *testing.T) {
	_, err := execute(t, "labels", "random", "--gray-count", "-1", "--gray", t.TempDir(), "--bright", t.TempDir())
	if err == nil {
		t.Fatal("expected a configuration error")
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "defaults.toml")
	writeFile(t, path, out)
	f, err := config.Load(path)
	if err != nil {
		t.Fatalf("printed config does not load: %v\n%s", err, out)
	}
	if f.Scenario != pipeline.ScenarioRandom || f.Seed != pipeline.DefaultSeed {
		t.Errorf("printed config = %+v", f)
	}
}

func TestFlagCompletions(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"run", "random", "--enhance", ""}, []string{"clahe", "default", "none"}},
		{[]string{"noise", "--levels", ""}, []string{"none", "mild", "moderate", "severe"}},
	}
	for _, tt := range tests {
		out, err := execute(t, append([]string{cobra.ShellCompRequestCmd}, tt.args...)...)
		if err != nil {
			t.Fatal(err)
		}
		for _, w := range tt.want {
			if !strings.Contains(out, w+"\n") {
				t.Errorf("%v: completions should offer %q:\n%s", tt.args, w, out)
			}
		}
	}
}

func TestSummaryTable(t *testing.T) {
	results := []*pipeline.StageResult{
		{Stage: pipeline.StageLabels, Counts: pool.Counts{Written: 12, Skipped: 1}, Duration: time.Second},
		{Stage: pipeline.StageImages, Counts: pool.Counts{Written: 12, Warnings: 3}, CacheHits: 4, Duration: 2 * time.Second},
	}
	got := summaryTable(results, 3*time.Second)
	for _, want := range []string{"labels", "images", "total", "24", "Warnings", "3s"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary table should contain %q:\n%s", want, got)
		}
	}
}

func TestProgressModel(t *testing.T) {
	var m tea.Model = NewProgressModel("Generating")
	m, _ = m.Update(eventMsg{Stage: pipeline.StageLabels, Done: 1, Total: 4})
	m, _ = m.Update(eventMsg{Stage: pipeline.StageLabels, Done: 4, Total: 4})
	m, _ = m.Update(eventMsg{Stage: pipeline.StageImages, Done: 2, Total: 8})

	pm := m.(ProgressModel)
	if diff := cmp.Diff([]string{pipeline.StageLabels, pipeline.StageImages}, pm.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	view := pm.View()
	if !strings.Contains(view, "4/4") || !strings.Contains(view, "2/8") {
		t.Errorf("view should show both stages:\n%s", view)
	}

	m, cmd := m.Update(doneMsg{})
	if cmd == nil {
		t.Error("done should quit the program")
	}
	if !m.(ProgressModel).Done {
		t.Error("model should be done")
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		done, total, filled int
	}{
		{0, 10, 0},
		{5, 10, 5},
		{10, 10, 10},
		{0, 0, 10},
	}
	for _, tt := range tests {
		got := bar(tt.done, tt.total, 10)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("bar(%d, %d) filled %d cells, want %d", tt.done, tt.total, n, tt.filled)
		}
	}
}
