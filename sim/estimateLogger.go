package sim

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// EstimateLogger writes one CSV row per call with the named columns of a log map.
type EstimateLogger struct {
	w   io.Writer
	c   io.Closer
	h   []string
	fmt string
}

// NewEstimateLogger writes the header h to w and returns a logger for its rows.
func NewEstimateLogger(w io.Writer, h ...string) (*EstimateLogger, error) {
	if len(h) == 0 {
		return nil, errors.New("sim: estimate logger needs at least one column")
	}
	l := &EstimateLogger{w: w, h: h}
	if _, err := fmt.Fprint(l.w, strings.Join(l.h, ","), "\n"); err != nil {
		return nil, err
	}
	s := strings.Repeat("%f,", len(l.h))
	l.fmt = strings.Join([]string{s[:len(s)-1], "\n"}, "")
	return l, nil
}

// CreateEstimateLogger opens fn for writing and logs to it.
func CreateEstimateLogger(fn string, h ...string) (*EstimateLogger, error) {
	f, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	l, err := NewEstimateLogger(f, h...)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.c = f
	return l, nil
}

// Header returns the column names.
func (l *EstimateLogger) Header() []string {
	return l.h
}

// Log writes the header columns of p as one row. Missing or non-numeric
// values are written as NaN.
func (l *EstimateLogger) Log(p map[string]interface{}) error {
	v := make([]interface{}, len(l.h))
	for i, k := range l.h {
		x, ok := p[k].(float64)
		if !ok {
			x = math.NaN()
		}
		v[i] = x
	}
	_, err := fmt.Fprintf(l.w, l.fmt, v...)
	return err
}

// Close closes the underlying file if the logger opened it.
func (l *EstimateLogger) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}
