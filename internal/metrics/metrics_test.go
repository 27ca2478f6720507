package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsReturnsSharedInstance(t *testing.T) {
	if NewMetrics() != NewMetrics() {
		t.Fatal("NewMetrics returned distinct instances")
	}
}

func TestRecordQueryParseCountsOutcomes(t *testing.T) {
	m := NewMetrics()
	okBefore := testutil.ToFloat64(m.QueryParsesTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(m.QueryParsesTotal.WithLabelValues("error"))

	m.RecordQueryParse(nil)
	m.RecordQueryParse(errors.New("unexpected token"))

	if got := testutil.ToFloat64(m.QueryParsesTotal.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("ok parses = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(m.QueryParsesTotal.WithLabelValues("error")); got != errBefore+1 {
		t.Errorf("error parses = %v, want %v", got, errBefore+1)
	}
}

func TestRecordQueryCompileCountsOutcomes(t *testing.T) {
	m := NewMetrics()
	okBefore := testutil.ToFloat64(m.QueryCompilesTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(m.QueryCompilesTotal.WithLabelValues("error"))

	m.RecordQueryCompile(nil)
	m.RecordQueryCompile(errors.New("unsupported core column"))

	if got := testutil.ToFloat64(m.QueryCompilesTotal.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("ok compiles = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(m.QueryCompilesTotal.WithLabelValues("error")); got != errBefore+1 {
		t.Errorf("error compiles = %v, want %v", got, errBefore+1)
	}
}
