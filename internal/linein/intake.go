package linein

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/metrics"
)

// DefaultIntakeBuffer is the default number of decoded lines held between
// the sources and the pump.
const DefaultIntakeBuffer = 50_000

var errNotRecords = errors.New("line is neither a JSON object nor an array")

// Route binds a line source to the tenant its records are stored under.
type Route struct {
	Source Source
	Tenant string
}

// Envelope is one decoded input line. Records is nil for a malformed line.
type Envelope struct {
	Source  string
	Tenant  string
	Records []any
}

// Malformed reports whether the line failed to decode.
func (e Envelope) Malformed() bool { return e.Records == nil }

// Intake reads every routed source, decodes each line and tags it with
// its tenant. A line of the form {"app": "<tenant>", "logs": [...]} carries
// its own tenant and overrides the route.
type Intake struct {
	ctx    context.Context
	cancel context.CancelFunc

	routes    []Route
	out       chan Envelope
	counters  *metrics.Counters
	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewIntake creates an intake over routes. counters may be nil.
func NewIntake(parent context.Context, routes []Route, buffer int, counters *metrics.Counters) *Intake {
	if buffer <= 0 {
		buffer = DefaultIntakeBuffer
	}
	if counters == nil {
		counters = metrics.NewTestCounters()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Intake{
		ctx:      ctx,
		cancel:   cancel,
		routes:   routes,
		out:      make(chan Envelope, buffer),
		counters: counters,
	}
}

// Start reads every source. Envelopes closes once all sources are exhausted.
func (in *Intake) Start() {
	in.startOnce.Do(func() {
		for _, r := range in.routes {
			in.wg.Add(1)
			go in.read(r)
		}
		go func() {
			in.wg.Wait()
			in.closeOut()
		}()
	})
}

// Stop stops every source and waits for the readers to exit.
func (in *Intake) Stop() {
	in.stopOnce.Do(func() {
		in.cancel()
		for _, r := range in.routes {
			r.Source.Stop()
		}
		in.wg.Wait()
		in.closeOut()
	})
}

// Enabled reports whether any source is routed.
func (in *Intake) Enabled() bool { return len(in.routes) > 0 }

// Describe lists "source -> tenant" for each route, in registration order.
func (in *Intake) Describe() []string {
	out := make([]string, 0, len(in.routes))
	for _, r := range in.routes {
		out = append(out, r.Source.Name()+" -> "+r.Tenant)
	}
	return out
}

func (in *Intake) Envelopes() <-chan Envelope { return in.out }

func (in *Intake) closeOut() { in.closeOnce.Do(func() { close(in.out) }) }

func (in *Intake) read(r Route) {
	defer in.wg.Done()

	lines := r.Source.Lines()
	for {
		select {
		case <-in.ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line.Text == "" {
				continue
			}
			env := in.decode(r.Tenant, line)
			select {
			case in.out <- env:
			case <-in.ctx.Done():
				return
			}
		}
	}
}

func (in *Intake) decode(tenant string, line Line) Envelope {
	env := Envelope{Source: line.Source, Tenant: tenant}
	records, override, err := decodeLine(line.Text)
	if err != nil {
		in.counters.LinesMalformed.Inc(line.Source)
		log.Debug().Err(err).Str("source", line.Source).Msg("linein: malformed line")
		return env
	}
	if override != "" {
		env.Tenant = override
	}
	env.Records = records
	return env
}

// decodeLine turns a line into records. Numbers stay json.Number so the
// validator sees integer timestamps exactly.
func decodeLine(text string) ([]any, string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, "", err
	}
	switch v := raw.(type) {
	case []any:
		return v, "", nil
	case map[string]any:
		app, hasApp := v["app"].(string)
		logs, hasLogs := v["logs"].([]any)
		if hasApp && hasLogs && len(v) == 2 {
			return logs, app, nil
		}
		return []any{v}, "", nil
	default:
		return nil, "", errNotRecords
	}
}
