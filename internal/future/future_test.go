package future

import (
	"errors"
	"testing"
)

func TestPromise_ResolvesOnce(t *testing.T) {
	p := New()
	if p.Err() != nil {
		t.Fatalf("pending promise must report nil error")
	}
	select {
	case <-p.Done():
		t.Fatalf("pending promise must not be done")
	default:
	}

	boom := errors.New("boom")
	if !p.Resolve(boom) {
		t.Fatalf("first Resolve should report true")
	}
	if p.Resolve(nil) {
		t.Fatalf("second Resolve should report false")
	}
	<-p.Done()
	if !errors.Is(p.Err(), boom) {
		t.Fatalf("err=%v want=%v", p.Err(), boom)
	}
}

func TestResolved(t *testing.T) {
	p := Resolved(nil)
	select {
	case <-p.Done():
	default:
		t.Fatalf("expected done")
	}
	if p.Err() != nil {
		t.Fatalf("err=%v want=nil", p.Err())
	}
}
