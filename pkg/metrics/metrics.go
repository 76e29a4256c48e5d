// Package metrics is a small Prometheus-compatible registry. Counters,
// histograms and sampled gauge functions render in the text exposition
// format.
//
// Labels are baked into series names with WithLabels, so
// `carfix_diagnose_total{lang="en"}` and `carfix_diagnose_total{lang="ar"}`
// are two series of one family.
package metrics

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Histogram counts observations into fixed upper-bound buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64 // non-cumulative; Render accumulates
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := slices.Clone(buckets)
	slices.Sort(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	if i, _ := slices.BinarySearch(h.buckets, v); i < len(h.buckets) {
		h.counts[i]++
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func (h *Histogram) snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{buckets: h.buckets, counts: slices.Clone(h.counts), sum: h.sum, count: h.count}
}

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// family groups the series sharing a base name.
type family struct {
	kind   kind
	help   string
	series map[string]any // full series name -> *Counter, *Histogram or func() float64
}

// Registry holds named metrics. The zero value is not usable; call New.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// series returns the existing series for name or stores the one built by mk.
// Registering a base name under a second kind panics.
func (r *Registry) series(name, help string, k kind, mk func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := metricBaseName(name)
	f, ok := r.families[base]
	if !ok {
		f = &family{kind: k, series: make(map[string]any)}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	if f.kind != k {
		panic(fmt.Sprintf("metrics: %s registered as %s and %s", base, f.kind, k))
	}
	if help != "" {
		f.help = help
	}
	if s, ok := f.series[name]; ok && k != kindGauge {
		return s
	}
	s := mk()
	f.series[name] = s
	return s
}

// Counter returns the counter for name, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	return r.series(name, help, kindCounter, func() any { return &Counter{} }).(*Counter)
}

// Histogram returns the histogram for name. buckets apply only on creation;
// nil means DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return r.series(name, help, kindHistogram, func() any { return newHistogram(buckets) }).(*Histogram)
}

// GaugeFunc registers f to be sampled on every Render. A later call with
// the same name replaces f.
func (r *Registry) GaugeFunc(name, help string, f func() float64) {
	r.series(name, help, kindGauge, func() any { return f })
}

// WithLabels appends label pairs to name:
// WithLabels("foo", "k", "v") => `foo{k="v"}`. An odd pair count returns name.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	pairs := make([]string, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%s=%q", kvs[i], kvs[i+1]))
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func metricBaseName(name string) string {
	if i := strings.IndexByte(name, '{'); i >= 0 {
		return name[:i]
	}
	return name
}

// labelsOf returns the inner label text of `foo{k="v"}`, or "".
func labelsOf(name string) string {
	i := strings.IndexByte(name, '{')
	if i < 0 {
		return ""
	}
	return strings.TrimSuffix(name[i+1:], "}")
}

func withLabel(labels, extra string) string {
	switch {
	case labels == "" && extra == "":
		return ""
	case labels == "":
		return "{" + extra + "}"
	case extra == "":
		return "{" + labels + "}"
	}
	return "{" + extra + "," + labels + "}"
}

// Render returns the registry in Prometheus text exposition format.
// Families appear in registration order, series sorted by name.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.kind)

		names := make([]string, 0, len(f.series))
		for n := range f.series {
			names = append(names, n)
		}
		slices.Sort(names)

		for _, n := range names {
			switch s := f.series[n].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s %d\n", n, s.Value())
			case func() float64:
				fmt.Fprintf(&b, "%s %g\n", n, s())
			case *Histogram:
				writeHistogram(&b, base, labelsOf(n), s.snapshot())
			}
		}
	}
	return b.String()
}

func writeHistogram(b *strings.Builder, base, labels string, s histogramSnapshot) {
	var cumulative uint64
	for i, le := range s.buckets {
		cumulative += s.counts[i]
		fmt.Fprintf(b, "%s_bucket%s %d\n", base, withLabel(labels, fmt.Sprintf("le=%q", fmt.Sprint(le))), cumulative)
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", base, withLabel(labels, `le="+Inf"`), s.count)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, withLabel(labels, ""), s.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, withLabel(labels, ""), s.count)
}

// Handler serves Render as text/plain.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}
