package wasm

import (
	"strings"
	"testing"
)

func TestValidatePluginIDRejectsUnsafeNames(t *testing.T) {
	cases := []string{"", "..", "/etc/passwd", "a/b", "a\\b", "a b", strings.Repeat("x", maxPluginIDLength+1)}
	for _, name := range cases {
		if err := ValidatePluginID(name); err == nil {
			t.Errorf("ValidatePluginID(%q) = nil, want error", name)
		}
	}
}

func TestValidatePluginIDAcceptsSafeNames(t *testing.T) {
	cases := []string{"weather", "weather-plugin", "weather_plugin.v2", "A1"}
	for _, name := range cases {
		if err := ValidatePluginID(name); err != nil {
			t.Errorf("ValidatePluginID(%q) = %v, want nil", name, err)
		}
	}
}

func TestPermissionStoreSetRejectsInvalidID(t *testing.T) {
	store := NewPermissionStore()
	if err := store.Set("..", PermissionSpec{}); err == nil {
		t.Error("expected invalid plugin id to be rejected")
	}
}

func TestPermissionStoreGetReturnsZeroValueForUnknown(t *testing.T) {
	store := NewPermissionStore()
	spec := store.Get("never-loaded")
	if len(spec.NetAllow) != 0 || len(spec.FSRoots) != 0 || len(spec.EnvAllow) != 0 {
		t.Errorf("expected zero-value spec for unknown plugin, got %+v", spec)
	}
}

func TestPermissionSpecEnvAllowed(t *testing.T) {
	spec := PermissionSpec{EnvAllow: []string{"API_KEY", "REGION"}}
	if !spec.EnvAllowed("API_KEY") {
		t.Error("expected API_KEY to be allowed")
	}
	if spec.EnvAllowed("SECRET") {
		t.Error("expected SECRET to be rejected")
	}
}

func TestMatchesPluginAllow(t *testing.T) {
	cases := []struct {
		allow []string
		host  string
		want  bool
	}{
		{[]string{"*"}, "anything.example.com", true},
		{[]string{"api.example.com"}, "api.example.com", true},
		{[]string{"api.example.com"}, "other.example.com", false},
		{[]string{"*.example.com"}, "api.example.com", true},
		{[]string{"*.example.com"}, "example.com", false},
		{nil, "anything", false},
	}
	for _, c := range cases {
		if got := matchesPluginAllow(c.allow, c.host); got != c.want {
			t.Errorf("matchesPluginAllow(%v, %q) = %v, want %v", c.allow, c.host, got, c.want)
		}
	}
}
