package coordinator

import (
	"fmt"
	"time"
)

// Settings are the game tunables. Zero values are replaced by defaults in New.
type Settings struct {
	CountdownFrom   int           `yaml:"countdown_from"`
	Tick            time.Duration `yaml:"tick"`
	AbortWindow     time.Duration `yaml:"abort_window"`
	GraceWindow     time.Duration `yaml:"grace_window"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	MaxDuration     time.Duration `yaml:"max_duration"`
	MaxTimeSetting  int           `yaml:"max_time_setting"`
	MaxWordsSetting int           `yaml:"max_words_setting"`
}

func DefaultSettings() Settings {
	return Settings{
		CountdownFrom:   5,
		Tick:            time.Second,
		AbortWindow:     10 * time.Second,
		GraceWindow:     20 * time.Second,
		SettleDelay:     time.Second,
		MaxDuration:     15 * time.Minute,
		MaxTimeSetting:  300,
		MaxWordsSetting: 500,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.CountdownFrom == 0 {
		s.CountdownFrom = d.CountdownFrom
	}
	if s.Tick == 0 {
		s.Tick = d.Tick
	}
	if s.AbortWindow == 0 {
		s.AbortWindow = d.AbortWindow
	}
	if s.GraceWindow == 0 {
		s.GraceWindow = d.GraceWindow
	}
	if s.SettleDelay == 0 {
		s.SettleDelay = d.SettleDelay
	}
	if s.MaxDuration == 0 {
		s.MaxDuration = d.MaxDuration
	}
	if s.MaxTimeSetting == 0 {
		s.MaxTimeSetting = d.MaxTimeSetting
	}
	if s.MaxWordsSetting == 0 {
		s.MaxWordsSetting = d.MaxWordsSetting
	}
	return s
}

func (s Settings) Validate() error {
	switch {
	case s.CountdownFrom < 0:
		return fmt.Errorf("countdown_from must not be negative, got %d", s.CountdownFrom)
	case s.Tick <= 0:
		return fmt.Errorf("tick must be positive, got %s", s.Tick)
	case s.AbortWindow <= 0:
		return fmt.Errorf("abort_window must be positive, got %s", s.AbortWindow)
	case s.GraceWindow <= 0:
		return fmt.Errorf("grace_window must be positive, got %s", s.GraceWindow)
	case s.SettleDelay <= 0:
		return fmt.Errorf("settle_delay must be positive, got %s", s.SettleDelay)
	case s.MaxDuration <= 0:
		return fmt.Errorf("max_duration must be positive, got %s", s.MaxDuration)
	case s.MaxTimeSetting <= 0 || s.MaxWordsSetting <= 0:
		return fmt.Errorf("max settings must be positive")
	}
	return nil
}

func (s Settings) checkKey(key QueueKey) error {
	if !key.Mode.Valid() {
		return ErrInvalidMode
	}
	limit := s.MaxWordsSetting
	if key.Mode == ModeTime {
		limit = s.MaxTimeSetting
	}
	if key.Setting <= 0 || key.Setting > limit {
		return ErrInvalidSetting
	}
	return nil
}
