package harness

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/rpcsim/internal/faker"
	"github.com/roach88/rpcsim/internal/mockclient"
	"github.com/roach88/rpcsim/internal/simulator"
	"github.com/roach88/rpcsim/internal/tracker"
)

// Config configures a Harness. The zero value is valid: an entropy-seeded
// faker, no latency, the system clock, and discarded logs.
type Config struct {
	// Seed seeds the faker. Nil draws a seed from entropy.
	Seed *int64

	// DefaultLatencyMs is the simulated latency the harness starts with.
	DefaultLatencyMs int64

	// Logger receives component logs.
	Logger *slog.Logger

	// Clock stamps call records. Nil selects the system clock.
	Clock tracker.Clock

	// TracerProvider creates call spans. Nil disables tracing.
	TracerProvider trace.TracerProvider
}

// Harness bundles one instance of each component, wired together. A harness
// is not shared between tests.
type Harness struct {
	Client    *mockclient.Client
	Tracker   *tracker.Tracker
	Simulator *simulator.Simulator
	Faker     *faker.Faker

	logger *slog.Logger
}

// New builds a harness from cfg. It fails only when cfg.DefaultLatencyMs is
// negative.
func New(cfg Config) (*Harness, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var f *faker.Faker
	if cfg.Seed != nil {
		f = faker.New(*cfg.Seed)
	} else {
		f = faker.NewFromEntropy()
	}

	sim := simulator.New(simulator.WithLogger(logger))
	if err := sim.SimulateLatency(cfg.DefaultLatencyMs); err != nil {
		return nil, err
	}

	tr := tracker.New(cfg.Clock)

	opts := []mockclient.Option{mockclient.WithLogger(logger)}
	if cfg.TracerProvider != nil {
		opts = append(opts, mockclient.WithTracerProvider(cfg.TracerProvider))
	}

	logger.Debug("harness created", "seed", f.Seed(), "default_latency_ms", cfg.DefaultLatencyMs)

	return &Harness{
		Client:    mockclient.New(f, sim, tr, opts...),
		Tracker:   tr,
		Simulator: sim,
		Faker:     f,
		logger:    logger,
	}, nil
}

// MustNew is New for tests and examples; it panics on error.
func MustNew(cfg Config) *Harness {
	h, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

// Reset clears mocks and call history. Simulator settings and the faker
// stream are left alone.
func (h *Harness) Reset() {
	h.Client.ClearMocks()
	h.Tracker.ClearCalls()
}

// Cleanup is Reset plus restoring the simulator to its default state.
func (h *Harness) Cleanup() {
	h.Reset()
	h.Simulator.ResetSimulation()
}
