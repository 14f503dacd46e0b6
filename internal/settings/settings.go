// Package settings holds the three adapter-tunable values and the key/value
// stores they are persisted in.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Persisted keys.
const (
	KeyPredictionMs     = "PredictionMs"
	KeyKeepAlive        = "KeepRiftAlive"
	KeyReduceResolution = "ReduceResolution"
)

// Defaults and bounds for the prediction offset.
const (
	DefaultPredictionMs = 11
	MinPredictionMs     = 0
	MaxPredictionMs     = 100
)

// ErrNotFound is returned by Store.Get for keys that were never written.
var ErrNotFound = errors.New("setting not found")

// Store is a persistent string key/value store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// GetBool reads a boolean, returning def when the key is missing or unparsable.
func GetBool(s Store, key string, def bool) bool {
	raw, err := s.Get(key)
	if err != nil {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// GetInt reads an integer, returning def when the key is missing or unparsable.
func GetInt(s Store, key string, def int) int {
	raw, err := s.Get(key)
	if err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// SetBool persists a boolean.
func SetBool(s Store, key string, v bool) error {
	if err := s.Set(key, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// SetInt persists an integer.
func SetInt(s Store, key string, v int) error {
	if err := s.Set(key, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// Target receives settings. Tracking handlers implement it.
type Target interface {
	SetKeepAlive(bool)
	SetReduceResolution(bool)
	SetPredictionMs(int)
}

// Settings are the adapter-tunable values forwarded to the handler.
type Settings struct {
	PredictionMs     int  `json:"prediction_ms"`
	KeepAlive        bool `json:"keep_alive"`
	ReduceResolution bool `json:"reduce_resolution"`
}

// Defaults returns the values used when nothing has been persisted.
func Defaults() Settings {
	return Settings{
		PredictionMs:     DefaultPredictionMs,
		KeepAlive:        false,
		ReduceResolution: true,
	}
}

// SanitizePredictionMs resets NaN and out-of-range input to the default and
// clamps whatever remains to the valid range.
func SanitizePredictionMs(v float64) int {
	if math.IsNaN(v) || v < MinPredictionMs || v > MaxPredictionMs {
		v = DefaultPredictionMs
	}
	v = math.Max(MinPredictionMs, math.Min(MaxPredictionMs, v))
	return int(v)
}

// Load reads all three values from the store, applying defaults and the
// prediction offset policy.
func Load(s Store) Settings {
	d := Defaults()
	return Settings{
		PredictionMs:     SanitizePredictionMs(float64(GetInt(s, KeyPredictionMs, d.PredictionMs))),
		KeepAlive:        GetBool(s, KeyKeepAlive, d.KeepAlive),
		ReduceResolution: GetBool(s, KeyReduceResolution, d.ReduceResolution),
	}
}

// Save persists all three values.
func (c Settings) Save(s Store) error {
	if err := SetInt(s, KeyPredictionMs, c.PredictionMs); err != nil {
		return err
	}
	if err := SetBool(s, KeyKeepAlive, c.KeepAlive); err != nil {
		return err
	}
	return SetBool(s, KeyReduceResolution, c.ReduceResolution)
}

// Apply forwards the values verbatim to t.
func (c Settings) Apply(t Target) {
	t.SetKeepAlive(c.KeepAlive)
	t.SetReduceResolution(c.ReduceResolution)
	t.SetPredictionMs(c.PredictionMs)
}
