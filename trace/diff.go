package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// ErrInvalidTrace is returned when a trace line is not a JSON object.
var ErrInvalidTrace = errors.New("invalid trace")

// Divergence is the first step at which two traces disagree.
type Divergence struct {
	// Line is the 1-based line number of the step.
	Line int
	// Expected and Actual are the raw lines. One is empty when its trace
	// ended early.
	Expected string
	Actual   string
	// Delta is a readable diff of the two steps.
	Delta string
}

// Diff compares two JSON Lines traces step by step. It returns nil when
// they match.
func Diff(expected, actual io.Reader) (*Divergence, error) {
	es := newLineScanner(expected)
	as := newLineScanner(actual)
	differ := gojsondiff.New()

	for line := 1; ; line++ {
		eok, aok := es.Scan(), as.Scan()
		if err := errors.Join(es.Err(), as.Err()); err != nil {
			return nil, err
		}

		switch {
		case !eok && !aok:
			return nil, nil
		case !eok:
			return &Divergence{Line: line, Actual: as.Text(), Delta: "expected trace ended"}, nil
		case !aok:
			return &Divergence{Line: line, Expected: es.Text(), Delta: "actual trace ended"}, nil
		}

		delta, err := differ.Compare(es.Bytes(), as.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidTrace, line, err)
		}
		if !delta.Modified() {
			continue
		}

		var left map[string]any
		if err := json.Unmarshal(es.Bytes(), &left); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidTrace, line, err)
		}

		text, err := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
			ShowArrayIndex: true,
		}).Format(delta)
		if err != nil {
			return nil, err
		}

		return &Divergence{
			Line:     line,
			Expected: es.Text(),
			Actual:   as.Text(),
			Delta:    text,
		}, nil
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s
}
