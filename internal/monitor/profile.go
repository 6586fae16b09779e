package monitor

import (
	"fmt"

	"anomaly-monitor/internal/classifier"
)

// Profile selects which detectors a loop runs. All profiles share the same
// tick and log schema.
type Profile struct {
	Name string
	// Thresholds enables the cpu/memory/disk threshold detector.
	Thresholds bool
	// Network enables the address and port-scan trackers.
	Network bool
	// Classify runs the models; when false the loop uses classifier.Disabled.
	Classify bool
	Features classifier.SynthesisMode
}

var profiles = map[string]Profile{
	"host": {
		Name:       "host",
		Thresholds: true,
		Network:    true,
		Classify:   true,
		Features:   classifier.ProxyFeatures,
	},
	"server": {
		Name:       "server",
		Thresholds: true,
	},
	"network": {
		Name:     "network",
		Network:  true,
		Classify: true,
		Features: classifier.FixedFeatures,
	},
}

func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}
