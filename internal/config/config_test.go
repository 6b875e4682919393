package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "08:00", cfg.Scheduler.DigestTime)
	assert.Equal(t, 30, cfg.Scheduler.DedupWindowMin)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 10, cfg.Channels.SMS.TimeoutSec)
	assert.Equal(t, 587, cfg.Channels.Email.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	os.Setenv("MEDREMIND_CHANNELS_SMS_ACCOUNT_SID", "AC123")
	os.Setenv("MEDREMIND_CHANNELS_SMS_AUTH_TOKEN", "token")
	os.Setenv("MEDREMIND_CHANNELS_SMS_FROM_NUMBER", "+15550001111")
	defer func() {
		os.Unsetenv("MEDREMIND_CHANNELS_SMS_ACCOUNT_SID")
		os.Unsetenv("MEDREMIND_CHANNELS_SMS_AUTH_TOKEN")
		os.Unsetenv("MEDREMIND_CHANNELS_SMS_FROM_NUMBER")
	}()

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.SMS().Configured())
	assert.Equal(t, "AC123", cfg.SMS().AccountSID)
}

func TestChannelConfigured(t *testing.T) {
	sms := SMSConfig{}
	assert.False(t, sms.Configured())

	sms = SMSConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1555"}
	assert.True(t, sms.Configured())

	email := EmailConfig{Host: "smtp.example.com", Username: "u", Password: "p"}
	assert.True(t, email.Configured())

	cal := CalendarConfig{ClientID: "id"}
	assert.False(t, cal.Configured())
}

func TestDigestClock(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	h, m := cfg.DigestClock()
	assert.Equal(t, 8, h)
	assert.Equal(t, 0, m)
}

func TestParseClockRejectsGarbage(t *testing.T) {
	_, _, err := parseClock("25:00")
	assert.Error(t, err)

	_, _, err = parseClock("0800")
	assert.Error(t, err)

	_, _, err = parseClock("12:61")
	assert.Error(t, err)
}
