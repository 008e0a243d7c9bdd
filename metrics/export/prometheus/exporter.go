package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads; *goOTC.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goOTC.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders a snapshot on every scrape.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *goOTC.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render as text/plain.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" when metrics are disabled and
// nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeHeader(&b, def.Name, def.Help, "counter")
		writeSample(&b, def.Name, snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		writeHeader(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			writeSample(&b, def.Name+`_bucket{le="`+le+`"}`, cumulative[i])
		}
		writeSample(&b, def.Name+"_count", cumulative[len(cumulative)-1])
		// Snapshots carry bucket counts only.
		writeSample(&b, def.Name+"_sum", 0)
	}

	writeHeader(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	writeSample(&b, internaldefs.AuditDroppedName, dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, series string, value uint64) {
	b.WriteString(series)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
