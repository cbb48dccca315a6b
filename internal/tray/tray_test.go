package tray

import "testing"

func TestTray_Toggle(t *testing.T) {
	tr := New(true)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("two toggles should end enabled")
	}
}

func TestTray_SetEnabledDoesNotCallBack(t *testing.T) {
	tr := New(true)
	tr.OnToggle(func(bool) { t.Error("SetEnabled must not call the toggle callback") })

	tr.SetEnabled(false)
	if tr.IsEnabled() {
		t.Error("SetEnabled(false) ignored")
	}
}

func TestTray_OpenCallback(t *testing.T) {
	tr := New(false)

	opened := 0
	tr.OnOpen(func() { opened++ })
	tr.handleOpen()

	if opened != 1 {
		t.Errorf("open callback called %d times, want 1", opened)
	}
}

func TestToggleTitle(t *testing.T) {
	tests := []struct {
		enabled bool
		want    string
	}{
		{true, "● Listening"},
		{false, "○ Paused"},
	}
	for _, tt := range tests {
		if got := toggleTitle(tt.enabled); got != tt.want {
			t.Errorf("toggleTitle(%v) = %q, want %q", tt.enabled, got, tt.want)
		}
	}
}
