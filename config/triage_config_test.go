package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FOLLOWUP_STAGE1_DELAY_MIN", "")
	t.Setenv("ADMIN_WHATSAPP", " +62800 , ,+62801")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.HistoryLimit != 12 || cfg.AutoClaimMinScore != 70 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.FollowUpStage1Delay != time.Hour || cfg.FollowUpStage2Delay != 24*time.Hour {
		t.Errorf("delays = %v / %v", cfg.FollowUpStage1Delay, cfg.FollowUpStage2Delay)
	}
	if len(cfg.AdminWhatsApp) != 2 || cfg.AdminWhatsApp[1] != "+62801" {
		t.Errorf("AdminWhatsApp = %q", cfg.AdminWhatsApp)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: "8080", HistoryLimit: 12, FollowUpScanInterval: time.Minute}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty port", func(c *Config) { c.Port = " " }, true},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }, true},
		{"negative delay", func(c *Config) { c.FollowUpStage1Delay = -time.Minute }, true},
		{"negative cooldown", func(c *Config) { c.HandoffCooldown = -time.Minute }, true},
		{"zero scan interval", func(c *Config) { c.FollowUpScanInterval = 0 }, true},
		{"signature without token", func(c *Config) { c.TwilioValidateSignature = true }, true},
		{"signature configured", func(c *Config) {
			c.TwilioValidateSignature = true
			c.TwilioAuthToken = "t"
			c.PublicBaseURL = "https://x"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTwilioEnabled(t *testing.T) {
	c := &Config{TwilioAccountSID: "AC", TwilioAuthToken: "t"}
	if c.TwilioEnabled() {
		t.Error("enabled without sender number")
	}
	c.TwilioWhatsAppFrom = "+1"
	if !c.TwilioEnabled() {
		t.Error("not enabled with full credentials")
	}
}
