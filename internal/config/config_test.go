package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fils99/bipedal-locomotion-framework/internal/config"
)

// minimalYAML contains exactly the required keys with typical values.
const minimalYAML = `
referencePosition: [0.1, 0.0]
saturationFactors: [0.7, 0.7]
mergePointRatios: [0.4, 0.8]
leftZMPDelta: [0.0, -0.01]
rightZMPDelta: [0.0, 0.01]
leftContactFrameName: l_sole
rightContactFrameName: r_sole
`

func TestParseMinimalUsesDefaults(t *testing.T) {
	p, err := config.Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.ControlType != config.ModeDirect {
		t.Errorf("ControlType = %q, want %q", p.ControlType, config.ModeDirect)
	}
	if p.DT != 2*time.Millisecond {
		t.Errorf("DT = %v, want 2ms", p.DT)
	}
	if p.PlannerHorizon != 20*time.Second {
		t.Errorf("PlannerHorizon = %v, want 20s", p.PlannerHorizon)
	}
	if p.CoMHeight != 0.70 {
		t.Errorf("CoMHeight = %v, want 0.70", p.CoMHeight)
	}
	if !p.IsPauseActive || !p.TerminalStep || !p.StartAlwaysSameFoot {
		t.Error("boolean defaults not applied")
	}
	if p.LeftContactFrameIndex != config.FrameInvalid || p.RightContactFrameIndex != config.FrameInvalid {
		t.Error("frame indices must start unresolved")
	}
}

func TestParseMissingRequired(t *testing.T) {
	required := []string{
		"referencePosition",
		"saturationFactors",
		"mergePointRatios",
		"leftZMPDelta",
		"rightZMPDelta",
		"leftContactFrameName",
		"rightContactFrameName",
	}

	for _, name := range required {
		t.Run(name, func(t *testing.T) {
			var b strings.Builder
			for _, line := range strings.Split(strings.TrimSpace(minimalYAML), "\n") {
				if strings.HasPrefix(line, name+":") {
					continue
				}
				b.WriteString(line + "\n")
			}

			_, err := config.Parse([]byte(b.String()))
			var missing *config.MissingParameterError
			if !errors.As(err, &missing) {
				t.Fatalf("expected *MissingParameterError, got %v (%T)", err, err)
			}
			if missing.Name != name {
				t.Errorf("missing parameter = %q, want %q", missing.Name, name)
			}
		})
	}
}

func TestParseOverridesAndUnitConversion(t *testing.T) {
	doc := minimalYAML + `
controlType: personFollowing
dt: 0.01
plannerHorizon: 5.0
maxAngleVariation: 90.0
leftYawDeltaInDeg: 180.0
swingLeft: true
isPauseActive: false
`
	p, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.ControlType != config.ModePersonFollowing {
		t.Errorf("ControlType = %q, want personFollowing", p.ControlType)
	}
	if p.DT != 10*time.Millisecond {
		t.Errorf("DT = %v, want 10ms", p.DT)
	}
	if p.PlannerHorizon != 5*time.Second {
		t.Errorf("PlannerHorizon = %v, want 5s", p.PlannerHorizon)
	}
	// Degrees on file, radians in memory.
	if diff := p.MaxAngleVariation - 1.5707963267948966; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("MaxAngleVariation = %v, want pi/2", p.MaxAngleVariation)
	}
	if diff := p.LeftYawDelta - 3.141592653589793; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("LeftYawDelta = %v, want pi", p.LeftYawDelta)
	}
	if !p.SwingLeft {
		t.Error("SwingLeft override not applied")
	}
	if p.IsPauseActive {
		t.Error("explicit false must override the true default")
	}
}

func TestParseValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantSub string
	}{
		{"invalid controlType", "controlType: teleop", "controlType"},
		{"zero comHeight", "comHeight: 0.0", "comHeight"},
		{"negative comHeight", "comHeight: -0.5", "comHeight"},
		{"horizon below dt", "plannerHorizon: 0.001", "plannerHorizon"},
		{"inverted step durations", "minStepDuration: 2.0", "minStepDuration"},
		{"ratio out of range", "switchOverSwingRatio: 0.9", "switchOverSwingRatio"},
		{"merge ratio out of range", "mergePointRatios: [1.5, 0.5]", "mergePointRatios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(minimalYAML + "\n" + tt.extra + "\n"))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := config.Parse([]byte("key: [unclosed"))
	var parseErr *config.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %v (%T)", err, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(filepath.Join(dir, "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing parameter file")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.LeftContactFrameName != "l_sole" || p.RightContactFrameName != "r_sole" {
		t.Errorf("contact frame names not loaded: %q / %q",
			p.LeftContactFrameName, p.RightContactFrameName)
	}
}

func TestOmega(t *testing.T) {
	p, err := config.Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	// omega = sqrt(9.80665 / 0.70)
	want := 3.7429
	if got := p.Omega(); got < want-1e-3 || got > want+1e-3 {
		t.Errorf("Omega() = %v, want about %v", got, want)
	}
}
