package testharness

import (
	"context"
	"testing"
)

// Setup runs SetupTests for a test and registers TeardownTests with
// t.Cleanup. The test fails immediately if setup fails.
func Setup(t testing.TB, h *Harness, entries ...Entry) *Outputs {
	t.Helper()

	res, err := h.SetupTests(t.Context(), entries...)
	if err != nil {
		t.Fatalf("testharness: %v", err)
	}

	t.Cleanup(func() {
		if err := res.TeardownTests(context.Background()); err != nil {
			t.Errorf("testharness: %v", err)
		}
	})

	return res.Outputs
}
