package sim

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/westphae/fwobserver/observer"
)

// situationColumns are the CSV header names a situation file must carry.
// Angles are in degrees, speeds in m/s and altitude in m.
var situationColumns = []string{"T", "Va", "Phi", "Theta", "Psi", "Wn", "We", "Alt"}

// NewSituationFromFile reads situation knots from the CSV file fn.
func NewSituationFromFile(fn string) (*SituationSim, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSituation(bufio.NewReader(f))
}

// ReadSituation reads situation knots as CSV from r. Columns may come in any
// order; unknown columns are ignored.
func ReadSituation(r io.Reader) (*SituationSim, error) {
	cr := csv.NewReader(r)

	// Read header line
	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("sim: reading situation header: %w", err)
	}
	fields := make(map[string]int)
	for i, k := range rec {
		fields[k] = i
	}
	for _, k := range situationColumns {
		if _, ok := fields[k]; !ok {
			return nil, fmt.Errorf("sim: situation file has no %s column", k)
		}
	}

	cols := make(map[string][]float64)
	for line := 2; ; line++ {
		rec, err = cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("sim: situation line %d: %w", line, err)
		}
		for _, k := range situationColumns {
			v, err := strconv.ParseFloat(rec[fields[k]], 64)
			if err != nil {
				return nil, fmt.Errorf("sim: situation line %d column %s: %w", line, k, err)
			}
			cols[k] = append(cols[k], v)
		}
	}

	return NewSituationSim(cols["T"], cols["Va"],
		scale(cols["Phi"], observer.Deg), scale(cols["Theta"], observer.Deg), scale(cols["Psi"], observer.Deg),
		cols["Wn"], cols["We"], cols["Alt"])
}
