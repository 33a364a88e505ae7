package browser

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"headful": ModeHeadful, "headless": ModeHeadless, "": ModeHeadless, "other": ModeHeadless}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q): got %v, want %v", in, got, want)
		}
	}
	if ModeHeadful.String() != "headful" || ModeHeadless.String() != "headless" {
		t.Error("String mismatch")
	}
}

func TestResourceName(t *testing.T) {
	cases := map[string]string{"Image": "images", "Font": "fonts", "Stylesheet": "stylesheets", "Media": "media", "Script": "script"}
	for in, want := range cases {
		if got := resourceName(in); got != want {
			t.Errorf("resourceName(%q): got %q, want %q", in, got, want)
		}
	}
	set := blockSet([]string{" Images", "fonts"})
	if !set["images"] || !set["fonts"] || set["media"] {
		t.Errorf("blockSet: got %v", set)
	}
}

func TestManager_Closed(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(t.Context()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: got %v, want ErrClosed", err)
	}
	if err := m.Recycle(); !errors.Is(err, ErrClosed) {
		t.Errorf("Recycle after Close: got %v, want ErrClosed", err)
	}
	if m.Browser() != nil {
		t.Error("Browser: want nil")
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.MemoryLimit != 1<<30 || m.cfg.XvfbDisplay != ":99" || m.cfg.Logger == nil {
		t.Errorf("defaults: got %+v", m.cfg)
	}
}
