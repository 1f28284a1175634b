package coordinator

import (
	"testing"
	"time"
)

func TestSettingsDefaultsFillZeroFields(t *testing.T) {
	s := Settings{GraceWindow: 5 * time.Second}.withDefaults()
	if s.GraceWindow != 5*time.Second {
		t.Errorf("GraceWindow = %s, want the explicit 5s", s.GraceWindow)
	}
	if s.CountdownFrom != 5 || s.AbortWindow != 10*time.Second || s.Tick != time.Second || s.MaxDuration != 15*time.Minute {
		t.Errorf("defaults not applied: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	bad := []Settings{
		{CountdownFrom: -1, Tick: time.Second, AbortWindow: time.Second, GraceWindow: time.Second, SettleDelay: time.Second, MaxTimeSetting: 1, MaxWordsSetting: 1},
		{CountdownFrom: 3, Tick: -time.Second, AbortWindow: time.Second, GraceWindow: time.Second, SettleDelay: time.Second, MaxTimeSetting: 1, MaxWordsSetting: 1},
		{CountdownFrom: 3, Tick: time.Second, AbortWindow: time.Second, GraceWindow: time.Second, SettleDelay: time.Second, MaxDuration: time.Minute, MaxTimeSetting: -5, MaxWordsSetting: 1},
		{CountdownFrom: 3, Tick: time.Second, AbortWindow: time.Second, GraceWindow: time.Second, SettleDelay: time.Second, MaxDuration: -time.Minute, MaxTimeSetting: 1, MaxWordsSetting: 1},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected an error for %+v", i, s)
		}
	}
}

func TestCheckKey(t *testing.T) {
	s := DefaultSettings()
	ok := []QueueKey{{ModeTime, 15}, {ModeTime, 300}, {ModeWords, 1}, {ModeWords, 500}}
	for _, k := range ok {
		if err := s.checkKey(k); err != nil {
			t.Errorf("checkKey(%s) = %v", k, err)
		}
	}
	if err := s.checkKey(QueueKey{ModeWords, 501}); err != ErrInvalidSetting {
		t.Errorf("words/501 = %v, want ErrInvalidSetting", err)
	}
	if err := s.checkKey(QueueKey{"zen", 10}); err != ErrInvalidMode {
		t.Errorf("zen/10 = %v, want ErrInvalidMode", err)
	}
}
