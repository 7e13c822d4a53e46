package rates

import "testing"

func TestWindowAllow(t *testing.T) {
	var w Window
	for i := 0; i < 3; i++ {
		if ok, _ := w.Allow(10, 5, 3); !ok {
			t.Fatalf("event %d within limit rejected", i)
		}
	}
	ok, cd := w.Allow(12, 5, 3)
	if ok || cd != 3 {
		t.Fatalf("over limit: ok=%v cooldown=%d", ok, cd)
	}
	if ok, _ := w.Allow(15, 5, 3); !ok {
		t.Fatalf("new window should reset the count")
	}
	if w.Start != 15 || w.Count != 1 {
		t.Fatalf("unexpected window state %+v", w)
	}
	var off Window
	for i := 0; i < 10; i++ {
		if ok, _ := off.Allow(1, 0, 0); !ok {
			t.Fatalf("disabled limit rejected")
		}
	}
}
