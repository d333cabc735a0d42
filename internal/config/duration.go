package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so config files can use strings like "15m".
// Bare numbers are interpreted as nanoseconds, matching time.Duration.
type Duration time.Duration

// D returns the underlying time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) parse(v any) error {
	switch t := v.(type) {
	case string:
		dur, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		*d = Duration(dur)
		return nil
	case float64:
		*d = Duration(time.Duration(t))
		return nil
	case int64:
		*d = Duration(time.Duration(t))
		return nil
	case int:
		*d = Duration(time.Duration(t))
		return nil
	default:
		return fmt.Errorf("cannot parse duration from %T", v)
	}
}

// UnmarshalJSON accepts "5s" strings or integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.parse(v)
}

// MarshalJSON emits the duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalYAML implements yaml.v3 unmarshalling.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	return d.parse(v)
}

// UnmarshalText covers TOML string values via go-toml's text interface.
func (d *Duration) UnmarshalText(b []byte) error {
	return d.parse(string(b))
}
