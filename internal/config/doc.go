// Package config defines the settings used by the warden binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config value is constructed once at startup and handed to every
// component explicitly; no component performs ambient configuration lookups.
package config
