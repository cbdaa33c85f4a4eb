package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("S3_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.NATS.SubjectPrefix != "vitals" {
		t.Errorf("NATS.SubjectPrefix = %q", cfg.NATS.SubjectPrefix)
	}
	if cfg.Vitals.HistoryMaxDuration != 168*time.Hour {
		t.Errorf("Vitals.HistoryMaxDuration = %v", cfg.Vitals.HistoryMaxDuration)
	}
	if cfg.Security.MaxIngestBodySize != 256*1024 {
		t.Errorf("Security.MaxIngestBodySize = %d", cfg.Security.MaxIngestBodySize)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"auth without token", map[string]string{"AUTH_ENABLED": "true", "AUTH_BEARER_TOKEN": ""}, "AUTH_BEARER_TOKEN"},
		{"s3 without bucket", map[string]string{"S3_ENABLED": "true", "S3_BUCKET": ""}, "S3_BUCKET"},
		{"bad duration", map[string]string{"VITALS_HISTORY_MAX_DURATION": "week"}, "VITALS_HISTORY_MAX_DURATION"},
		{"bad int", map[string]string{"REDIS_DB": "one"}, "REDIS_DB"},
		{"zero rate", map[string]string{"INGEST_RATE_LIMIT_RPS": "0"}, "INGEST_RATE_LIMIT_RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" http://a , ,http://b,")
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Errorf("splitCSV() = %v", got)
	}
}
