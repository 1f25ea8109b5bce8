package rawio_test

import (
	"testing"

	"github.com/basin-os/basin/internal/rawio"
)

func TestAcquire_DisablesThenRestores(tt *testing.T) {
	if !rawio.Enabled() {
		tt.Fatalf("want gate enabled before any Acquire")
	}

	release := rawio.Acquire()

	if rawio.Enabled() {
		tt.Errorf("want gate disabled while acquired")
	}

	release()

	if !rawio.Enabled() {
		tt.Errorf("want gate restored to enabled after release")
	}
}

func TestAcquire_ReleaseIsIdempotent(tt *testing.T) {
	release := rawio.Acquire()

	release()
	release()

	if !rawio.Enabled() {
		tt.Errorf("want gate enabled after idempotent release")
	}
}

func TestAcquire_NestedRestoresOuterState(tt *testing.T) {
	outer := rawio.Acquire()
	inner := rawio.Acquire()

	inner()

	if rawio.Enabled() {
		tt.Errorf("want gate still disabled after releasing only the inner acquisition")
	}

	outer()

	if !rawio.Enabled() {
		tt.Errorf("want gate enabled after releasing the outer acquisition")
	}
}
