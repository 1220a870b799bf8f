package config

import (
	"reflect"
)

// LiveSections can be applied without a restart.
var LiveSections = map[string]bool{"logging": true}

// ChangedSections lists the top-level sections that differ between two configs.
// Order follows the Config struct; secrets never leave this function.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out []string
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	add("platform", oldCfg.Platform, newCfg.Platform)
	add("matrix", oldCfg.Matrix, newCfg.Matrix)
	add("telegram", oldCfg.Telegram, newCfg.Telegram)
	add("bridge", oldCfg.Bridge, newCfg.Bridge)
	add("spaceapi", oldCfg.SpaceAPI, newCfg.SpaceAPI)
	add("mqtt", oldCfg.MQTT, newCfg.MQTT)
	add("health", oldCfg.Health, newCfg.Health)
	add("logging", oldCfg.Logging, newCfg.Logging)
	add("storage", oldCfg.Storage, newCfg.Storage)
	return out
}

// RestartRequired filters sections that only take effect after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
