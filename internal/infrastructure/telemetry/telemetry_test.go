package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSetup_AllDisabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "ledger-test"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.Tracer.IsEnabled())
	assert.False(t, p.Meter.IsEnabled())
	assert.False(t, p.Logs.IsEnabled())
	assert.False(t, p.Profiler.IsEnabled())
	assert.False(t, p.Tracer.IsSpanProfilesEnabled())
	assert.NotNil(t, p.Meter.Meter("x"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProfiler_RequiresEndpoint(t *testing.T) {
	_, err := NewProfiler(Config{ProfilingEnabled: true}, zap.NewNop())
	require.Error(t, err)
}

func TestProfiler_StopTwice(t *testing.T) {
	p, err := NewProfiler(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestWithProfilingLabels_RunsFn(t *testing.T) {
	calls := 0
	WithProfilingLabels(context.Background(), nil, func(context.Context) { calls++ })
	WithProfilingLabels(context.Background(), map[string]string{"op": "allocate", "": "skip"}, func(ctx context.Context) {
		assert.NotNil(t, ctx)
		calls++
	})
	assert.Equal(t, 2, calls)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestStartEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, ok := StartSpan(context.Background(), "ledger.allocate", AttrDocumentKind.String("INVOICE"))
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "ledger.reverse")
	EndSpan(failed, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ledger.allocate", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), AttrDocumentKind.String("INVOICE"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}

func TestLedgerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	assert.True(t, mp.IsEnabled())

	m, err := NewLedgerMetrics(mp.Meter(TracerName))
	require.NoError(t, err)

	ctx := context.Background()
	m.DocumentCreated(ctx, "INVOICE")
	m.DocumentCreated(ctx, "ORDER")
	m.Transition(ctx, "INVOICE", "DRAFT", "SENT", "SEND")
	m.PaymentReceived(ctx, "CASH", "USD")
	m.Allocation(ctx, "APPLICATION", "USD", decimal.RequireFromString("120.50"))
	m.Allocation(ctx, "REVERSAL", "USD", decimal.RequireFromString("20"))
	m.ReturnRecorded(ctx, "PARTIAL")
	m.OverdueScan(ctx, 3, 250*time.Millisecond, nil)
	m.ReminderEnqueued(ctx)
	m.NumberingRetry(ctx, "INVOICE")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["ledger.documents.created"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger.documents.transitions"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger.payments.received"]))
	assert.Equal(t, int64(2), sumOf(t, got["ledger.allocations"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger.returns.recorded"]))
	assert.Equal(t, int64(3), sumOf(t, got["ledger.overdue.marked"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger.reminders.enqueued"]))
	assert.Equal(t, int64(1), sumOf(t, got["ledger.numbering.retries"]))

	hist, ok := got["ledger.allocation.amount"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	var sum float64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		sum += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 140.5, sum, 0.0001)

	scan, ok := got["ledger.overdue.scan.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, scan.DataPoints, 1)
	assert.InDelta(t, 0.25, scan.DataPoints[0].Sum, 0.0001)
}

func TestLedgerMetrics_NilSafe(t *testing.T) {
	var m *LedgerMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.DocumentCreated(ctx, "INVOICE")
		m.Transition(ctx, "INVOICE", "DRAFT", "SENT", "SEND")
		m.PaymentReceived(ctx, "CASH", "USD")
		m.Allocation(ctx, "APPLICATION", "USD", decimal.NewFromInt(1))
		m.ReturnRecorded(ctx, "FULL")
		m.OverdueScan(ctx, 1, time.Second, errors.New("x"))
		m.ReminderEnqueued(ctx)
		m.NumberingRetry(ctx, "INVOICE")
	})
}

type recordingProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }
func (p *recordingProcessor) Shutdown(context.Context) error                          { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error                        { return nil }

var _ sdklog.Processor = (*recordingProcessor)(nil)

func TestLoggerProvider_ZapCore(t *testing.T) {
	disabled, err := NewLoggerProvider(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, disabled.ZapCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))

	proc := &recordingProcessor{}
	lp := NewLoggerProviderWithProcessor("ledger-test", proc, zap.NewNop())
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	require.True(t, lp.IsEnabled())

	log := zap.New(lp.ZapCore(zapcore.WarnLevel)).With(zap.String("tenant_id", "t1"))
	log.Info("dropped below level")
	log.Warn("overdue scan slow")

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.records, 1)
	assert.Equal(t, "overdue scan slow", proc.records[0].Body().AsString())
}

func TestRegisterDBTracing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, RegisterDBTracing(db, Config{}, zap.NewNop()))
	_, registered := db.Config.Plugins["otelgorm"]
	assert.False(t, registered)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := Config{Enabled: true, DBTraceEnabled: true, DBSlowQueryThresh: time.Nanosecond}
	require.NoError(t, RegisterDBTracing(db, cfg, zap.NewNop()))
	_, registered = db.Config.Plugins["otelgorm"]
	assert.True(t, registered)

	var n int
	require.NoError(t, db.WithContext(context.Background()).Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)

	var slow bool
	for _, span := range recorder.Ended() {
		for _, kv := range span.Attributes() {
			if kv.Key == "db.slow_query" && kv.Value.AsBool() {
				slow = true
			}
		}
	}
	assert.True(t, slow)
}
