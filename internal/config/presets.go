package config

import "sort"

var Presets = map[string]map[string]*Config{
	"fall": {
		"single": {
			Scene: "fall", Integrator: "rk4", Dt: 0.01, Duration: 2.0,
			Params: map[string]float64{"count": 1, "height": 10},
		},
		"scatter": {
			Scene: "fall", Integrator: "symplectic", Dt: 0.01, Duration: 2.0, Seed: 7,
			Params: map[string]float64{"count": 8, "jitter": 2},
		},
	},
	"chain": {
		"soft": {
			Scene: "chain", Integrator: "symplectic", Dt: 0.002, Duration: 5.0,
			Params: map[string]float64{"count": 6, "stiffness": 50},
		},
		"stiff": {
			Scene: "chain", Integrator: "implicit", Dt: 0.01, Duration: 5.0,
			Params: map[string]float64{"count": 12, "stiffness": 5000},
		},
		"long": {
			Scene: "chain", Integrator: "implicit", Dt: 0.01, Duration: 10.0,
			Params: map[string]float64{"count": 40, "stiffness": 800, "spacing": 0.1},
		},
	},
	"mapped": {
		"breeze": {
			Scene: "mapped", Integrator: "implicit", Dt: 0.01, Duration: 5.0,
			Params: map[string]float64{"wind": 0.5},
		},
		"gale": {
			Scene: "mapped", Integrator: "rk4", Dt: 0.005, Duration: 5.0,
			Params: map[string]float64{"wind": 5, "stiffness": 100},
		},
	},
	"pinned": {
		"swing": {
			Scene: "pinned", Integrator: "symplectic", Dt: 0.002, Duration: 5.0,
		},
		"rigid": {
			Scene: "pinned", Integrator: "implicit", Dt: 0.01, Duration: 5.0,
			Params: map[string]float64{"stiffness": 1e5},
		},
	},
	"servo": {
		"hover": {
			Scene: "servo", Integrator: "rk4", Dt: 0.01, Duration: 10.0,
		},
		"sluggish": {
			Scene: "servo", Integrator: "implicit", Dt: 0.01, Duration: 20.0,
			Params: map[string]float64{"kp": 10, "ki": 2, "kd": 2},
		},
	},
}

// GetPreset returns a copy of the named preset completed with defaults,
// or nil.
func GetPreset(scene, preset string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	p, ok := scenePresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Scene, cfg.Integrator = p.Scene, p.Integrator
	cfg.Dt, cfg.Duration, cfg.Seed = p.Dt, p.Duration, p.Seed
	for k, v := range p.Params {
		cfg.Params[k] = v
	}
	return cfg
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
