package platform

import "testing"

func TestMaskRestorePairing(t *testing.T) {
	ctrl, _ := Default()

	prior1 := ctrl.Mask(128)
	prior2 := ctrl.Mask(128)
	ctrl.Restore(prior2)
	ctrl.Restore(prior1)

	// A third mask/restore pair should behave identically to the first,
	// confirming the controller returned to its unmasked baseline.
	prior3 := ctrl.Mask(128)
	if prior3 != prior1 {
		t.Errorf("expected symmetric prior masks, got %v and %v", prior1, prior3)
	}
	ctrl.Restore(prior3)
}

func TestClockAdvance(t *testing.T) {
	_, clk := Default()
	adv, ok := clk.(AdvanceClock)
	if !ok {
		t.Fatal("expected default clock to support manual advance")
	}

	start := adv.TickCount()
	for i := 0; i < 5; i++ {
		adv.Advance()
	}
	if got := adv.TickCount(); got != start+5 {
		t.Errorf("expected tick count %d, got %d", start+5, got)
	}
}

func TestSystemTimeNonZero(t *testing.T) {
	_, clk := Default()
	if clk.SystemTime().IsZero() {
		t.Error("expected non-zero system time")
	}
}
