package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.PollAttempts != 60 || cfg.PollInterval != time.Second {
		t.Fatalf("poll defaults mismatch: %d x %s", cfg.PollAttempts, cfg.PollInterval)
	}
	if cfg.Cooldown != 2*time.Second {
		t.Fatalf("Cooldown mismatch: %s", cfg.Cooldown)
	}
	if cfg.ArtifactSource != "view" || cfg.Publisher != "filesystem" {
		t.Fatalf("unexpected defaults: source=%q publisher=%q", cfg.ArtifactSource, cfg.Publisher)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigReadsDurations(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("COOLDOWN_MS", "0")
	t.Setenv("BATCH_TIMEOUT_SECONDS", "90")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.Cooldown != 0 {
		t.Fatalf("Cooldown = %s", cfg.Cooldown)
	}
	if cfg.BatchTimeout != 90*time.Second {
		t.Fatalf("BatchTimeout = %s", cfg.BatchTimeout)
	}
}

func TestLoadConfigRequiresMongoURIForMongoDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when MONGO_URI is missing")
	}
}

func TestLoadConfigRejectsUnknownPublisher(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PUBLISHER", "ftp")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown publisher")
	}
}

func TestLoadConfigRequiresBucketForS3(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PUBLISHER", "s3")
	t.Setenv("S3_BUCKET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when S3_BUCKET is missing")
	}
}
