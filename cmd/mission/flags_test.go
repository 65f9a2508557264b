package main

import (
	"os"
	"testing"
	"time"

	"github.com/ferrule-robotics/missiond/internal/config"
	"github.com/ferrule-robotics/missiond/internal/linkmux"
)

// TestFlagDefaults pins the daemon's flag defaults; deployments rely on a
// bare `missiond` invocation meaning mock link + local mission log.
func TestFlagDefaults(t *testing.T) {
	stringFlags := []struct {
		name string
		got  *string
		want string
	}{
		{"config", configPath, "missions.yaml"},
		{"link", linkSpec, "mock"},
		{"listen", listen, ":8080"},
		{"db", dbPath, "mission.db"},
		{"udp-feed", udpFeedAddr, ""},
	}
	for _, f := range stringFlags {
		if f.got == nil {
			t.Fatalf("flag -%s not defined", f.name)
		}
		if *f.got != f.want {
			t.Errorf("flag -%s default = %q, want %q", f.name, *f.got, f.want)
		}
	}

	if *devMode {
		t.Error("expected -dev default to be false")
	}
	if *oneshot {
		t.Error("expected -oneshot default to be false")
	}
	if !*autoMigrate {
		t.Error("expected -auto-migrate default to be true")
	}
	if *poseRetention != 7*24*time.Hour {
		t.Errorf("expected -pose-retention default of one week, got %v", *poseRetention)
	}
}

func setLinkFlags(t *testing.T, spec string, dev bool) {
	t.Helper()
	oldSpec, oldDev := *linkSpec, *devMode
	*linkSpec, *devMode = spec, dev
	t.Cleanup(func() { *linkSpec, *devMode = oldSpec, oldDev })
}

func TestOpenLink(t *testing.T) {
	cfg, err := config.Parse([]byte(fixtureConfig))
	if err != nil {
		t.Fatalf("Failed to parse fixture config: %v", err)
	}

	t.Run("none", func(t *testing.T) {
		setLinkFlags(t, "none", false)
		link, err := openLink(cfg)
		if err != nil {
			t.Fatalf("openLink: %v", err)
		}
		defer link.Close()
		if _, ok := link.(*linkmux.DisabledLinkMux); !ok {
			t.Errorf("expected a disabled link, got %T", link)
		}
	})

	t.Run("mock", func(t *testing.T) {
		setLinkFlags(t, "mock", false)
		link, err := openLink(cfg)
		if err != nil {
			t.Fatalf("openLink: %v", err)
		}
		defer link.Close()
		if err := link.SendLine("ping"); err != nil {
			t.Errorf("mock link should accept writes, got %v", err)
		}
	})

	t.Run("tcp refused", func(t *testing.T) {
		setLinkFlags(t, "tcp://127.0.0.1:1", false)
		if _, err := openLink(cfg); err == nil {
			t.Error("expected dial error for an unreachable controller")
		}
	})

	t.Run("dev fixtures", func(t *testing.T) {
		t.Chdir(t.TempDir())
		line := `{"type":"pose","stamp":0,"position":{"x":0,"y":0,"z":0},"orientation":{"x":0,"y":0,"z":0,"w":1}}`
		if err := os.WriteFile("fixtures.txt", []byte(line+"\n"), 0o644); err != nil {
			t.Fatalf("Failed to write fixtures: %v", err)
		}
		setLinkFlags(t, "mock", true)
		link, err := openLink(cfg)
		if err != nil {
			t.Fatalf("openLink: %v", err)
		}
		link.Close()
	})

	t.Run("dev without fixtures", func(t *testing.T) {
		t.Chdir(t.TempDir())
		setLinkFlags(t, "mock", true)
		if _, err := openLink(cfg); err == nil {
			t.Error("expected an error when fixtures.txt is missing")
		}
	})
}
