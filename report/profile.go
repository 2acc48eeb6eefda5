// Package report builds execution profiles from trace steps and renders
// them as HTML charts.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sarchlab/mrcm/trace"
)

// OpStats aggregates the retired instances of one mnemonic.
type OpStats struct {
	Count  uint64
	Cycles uint64
}

// Profile is a trace.Writer that accumulates an instruction mix and the
// running cycle count.
type Profile struct {
	ops map[string]*OpStats

	ticks      []uint64
	cumulative []uint64
	total      uint64
}

// NewProfile creates an empty Profile.
func NewProfile() *Profile {
	return &Profile{ops: make(map[string]*OpStats)}
}

// WriteStep records a retired step. Faulted steps are skipped.
func (p *Profile) WriteStep(step *trace.Step) error {
	if step.Fault != "" {
		return nil
	}

	name := mnemonic(step.Disasm)
	s, ok := p.ops[name]
	if !ok {
		s = &OpStats{}
		p.ops[name] = s
	}
	s.Count++
	s.Cycles += step.Cycles

	p.total += step.Cycles
	p.ticks = append(p.ticks, step.Tick)
	p.cumulative = append(p.cumulative, p.total)

	return nil
}

func mnemonic(disasm string) string {
	fields := strings.Fields(disasm)
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}

// Mnemonics returns the recorded mnemonics, most frequent first.
func (p *Profile) Mnemonics() []string {
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		a, b := p.ops[names[i]], p.ops[names[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return names[i] < names[j]
	})

	return names
}

// Op returns the statistics for one mnemonic.
func (p *Profile) Op(name string) OpStats {
	if s, ok := p.ops[name]; ok {
		return *s
	}
	return OpStats{}
}

// TotalCycles returns the sum of the recorded step cycles.
func (p *Profile) TotalCycles() uint64 {
	return p.total
}

// Render writes an HTML page with the instruction mix and the cumulative
// cycle curve.
func (p *Profile) Render(w io.Writer, title string) error {
	names := p.Mnemonics()
	counts := make([]opts.BarData, len(names))
	cycles := make([]opts.BarData, len(names))
	for i, name := range names {
		counts[i] = opts.BarData{Name: name, Value: p.ops[name].Count}
		cycles[i] = opts.BarData{Name: name, Value: p.ops[name].Cycles}
	}

	mix := charts.NewBar()
	mix.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d instructions, %d cycles", len(p.ticks), p.total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	mix.SetXAxis(names).
		AddSeries("Instructions", counts).
		AddSeries("Cycles", cycles)

	timeline := make([]opts.LineData, len(p.cumulative))
	for i, c := range p.cumulative {
		timeline[i] = opts.LineData{Value: c}
	}

	curve := charts.NewLine()
	curve.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Cumulative cycles"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	curve.SetXAxis(p.ticks).AddSeries("Cycles", timeline)

	page := components.NewPage()
	page.AddCharts(mix, curve)
	return page.Render(w)
}

// WriteHTML renders the profile to path.
func (p *Profile) WriteHTML(path, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}

	if err := p.Render(f, title); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
