package noise

import (
	"encoding/csv"
	"io"
	"math/rand/v2"
	"strconv"
)

// LogHeader is the header row of the noise log.
var LogHeader = []string{"filename", "noise_type", "alpha", "sigma^2", "output_path"}

// Entry records one noisy output.
type Entry struct {
	Filename string
	Level    Level
	Output   string
}

// Row returns the CSV fields of e.
func (e Entry) Row() []string {
	return []string{
		e.Filename,
		e.Level.Name,
		e.Level.AlphaString(),
		strconv.FormatFloat(e.Level.Sigma2, 'f', -1, 64),
		e.Output,
	}
}

// WriteLog writes the header and one row per entry as CSV.
func WriteLog(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LogHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(e.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Source returns the random stream for the index-th image of a run. Streams
// depend only on seed and index, so results do not depend on which worker
// processes which image.
func Source(seed uint64, index int) rand.Source {
	return rand.NewPCG(seed, uint64(index)^0x9e3779b97f4a7c15)
}
