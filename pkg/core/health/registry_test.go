package health

import (
	"errors"
	"testing"
	"time"
)

func TestRegistry_CoolsDownAfterMaxErrors(t *testing.T) {
	reg := NewRegistry(3, 50*time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := reg.Execute("tushare", func() error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if reg.Allow("tushare") {
		t.Fatal("expected source to be refused immediately after 3 consecutive failures")
	}

	err := reg.Execute("tushare", func() error { return boom })
	if !errors.Is(err, ErrSourceCoolingDown) {
		t.Fatalf("expected ErrSourceCoolingDown, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if !reg.Allow("tushare") {
		t.Fatal("expected source to be admitted (probing) after cooldown elapsed")
	}

	if err := reg.Execute("tushare", func() error { return nil }); err != nil {
		t.Fatalf("expected probing call to succeed, got %v", err)
	}

	st := reg.State("tushare")
	if !st.Healthy {
		t.Fatal("expected source healthy again after a successful probe")
	}
}

func TestRegistry_IndependentSources(t *testing.T) {
	reg := NewRegistry(1, time.Hour)
	_ = reg.Execute("tushare", func() error { return errors.New("x") })

	if reg.Allow("tushare") {
		t.Fatal("tushare should be cooling")
	}
	if !reg.Allow("akshare") {
		t.Fatal("akshare should be unaffected by tushare's failure")
	}
}
