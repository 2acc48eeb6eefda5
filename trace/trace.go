// Package trace records one structured entry per executed tick.
package trace

import "errors"

// Step describes one tick of the core.
type Step struct {
	Tick   uint64 `json:"tick"`
	PC     uint64 `json:"pc"`
	Word   uint32 `json:"word"`
	Disasm string `json:"disasm,omitempty"`
	NextPC uint64 `json:"nextPc"`
	Cycles uint64 `json:"cycles"`

	RegWrite *RegWrite  `json:"regWrite,omitempty"`
	MemRead  *MemAccess `json:"memRead,omitempty"`
	MemWrite *MemAccess `json:"memWrite,omitempty"`

	// Fault is the fault text when the tick did not retire.
	Fault string `json:"fault,omitempty"`
}

// RegWrite is a committed register update.
type RegWrite struct {
	Reg   uint8  `json:"reg"`
	Value uint64 `json:"value"`
}

// MemAccess is a doubleword data memory access.
type MemAccess struct {
	Addr  uint64 `json:"addr"`
	Value uint64 `json:"value"`
	Hit   *bool  `json:"hit,omitempty"`
}

// SetRegWrite records a register update.
func (s *Step) SetRegWrite(reg uint8, value uint64) {
	s.RegWrite = &RegWrite{Reg: reg, Value: value}
}

// Writer consumes trace steps.
type Writer interface {
	WriteStep(step *Step) error
}

// Recorder keeps steps in memory. It is meant for tests and the debugger.
type Recorder struct {
	Steps []Step
}

// WriteStep appends a copy of step.
func (r *Recorder) WriteStep(step *Step) error {
	r.Steps = append(r.Steps, *step)
	return nil
}

type multiWriter []Writer

func (m multiWriter) WriteStep(step *Step) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteStep(step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tee returns a Writer that forwards every step to all of writers.
func Tee(writers ...Writer) Writer {
	if len(writers) == 1 {
		return writers[0]
	}
	return multiWriter(writers)
}
