package core

import (
	"context"
	"sync"
	"testing"
)

func TestNewSpan(t *testing.T) {
	ec := EmptyRail()
	ec.Infof("Parent Span")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		cc := ec.NextSpan()
		if cc.TraceId() != ec.TraceId() {
			t.Fatalf("trace id not propagated, parent: %v, child: %v", ec.TraceId(), cc.TraceId())
		}
		if cc.CtxValStr(XSpanId) == ec.CtxValStr(XSpanId) {
			t.Fatal("expected a new span id")
		}
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			cc.Infof("Child Span, j: %v", j)
		}(i)
	}
	wg.Wait()
}

func TestNewRailKeepsTrace(t *testing.T) {
	ctx := context.WithValue(context.Background(), XTraceId, "abc") //lint:ignore SA1029 keys are exposed
	rail := NewRail(ctx)
	if rail.TraceId() != "abc" {
		t.Fatalf("expected 'abc', got %v", rail.TraceId())
	}

	cctx, cancel := context.WithCancel(rail.Context())
	cancel()
	if next := NewRail(cctx).NextSpan(); next.Context().Err() != nil || next.TraceId() != "abc" {
		t.Fatal("next span should not inherit cancellation")
	}
}
