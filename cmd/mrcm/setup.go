package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/mrcm/config"
	"github.com/sarchlab/mrcm/emu"
	"github.com/sarchlab/mrcm/loader"
	"github.com/sarchlab/mrcm/timing/cache"
	"github.com/sarchlab/mrcm/trace"
)

// options holds the flags shared by every subcommand.
type options struct {
	configPath      string
	logLevel        string
	data            []string
	tracePath       string
	maxInstructions uint64
	lenient         bool
	dcache          bool

	stderr io.Writer
}

// session is an emulator built from the command-line options, with the
// resources it owns.
type session struct {
	emu    *emu.Emulator
	logger *slog.Logger
	tracer *trace.JSONLWriter
}

func (s *session) Close() error {
	if s.tracer == nil {
		return nil
	}
	return s.tracer.Close()
}

func (o *options) newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}

	return slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level})), nil
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	if o.maxInstructions > 0 {
		cfg.MaxInstructions = o.maxInstructions
	}
	if o.lenient {
		cfg.StrictDecode = false
	}
	if o.dcache && cfg.DCache == nil {
		dc := cache.DefaultL1DConfig()
		cfg.DCache = &dc
	}

	return cfg, cfg.Validate()
}

// newSession builds an emulator and loads imagePath, if given, and the
// data segments into it. Every tick is also written to extra.
func (o *options) newSession(imagePath string, extra ...trace.Writer) (*session, error) {
	logger, err := o.newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}
	emuOpts := []emu.EmulatorOption{
		emu.WithConfig(cfg),
		emu.WithLogger(logger),
	}

	writers := extra
	if o.tracePath != "" {
		s.tracer, err = trace.NewJSONLWriterFile(o.tracePath)
		if err != nil {
			return nil, err
		}
		writers = append([]trace.Writer{s.tracer}, extra...)
	}
	if len(writers) > 0 {
		emuOpts = append(emuOpts, emu.WithTraceWriter(trace.Tee(writers...)))
	}

	s.emu = emu.NewEmulator(emuOpts...)

	prog := &loader.Program{}
	if imagePath != "" {
		prog, err = loader.Load(imagePath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	for _, spec := range o.data {
		path, addr, err := loader.ParseSegmentSpec(spec)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		seg, err := loader.LoadSegment(path, addr)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		prog.Data = append(prog.Data, seg)
	}

	if err := prog.LoadInto(s.emu); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}
