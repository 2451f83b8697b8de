package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipshare/models"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB_PATH", "REDIS_URL", "HIT_FLUSH_INTERVAL", "SWEEP_INTERVAL", "SHUTDOWN_TIMEOUT", "LOG_DIR"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()

	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, DefaultDBPath)
	}
	if cfg.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %s, want %s", cfg.FlushInterval, DefaultFlushInterval)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %s, want %s", cfg.SweepInterval, DefaultSweepInterval)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/clips.db")
	t.Setenv("HIT_FLUSH_INTERVAL", "250ms")
	t.Setenv("SWEEP_INTERVAL", "2m")
	t.Setenv("REDIS_DB", "3")
	cfg := FromEnv()

	if cfg.DBPath != "/tmp/clips.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.FlushInterval != 250*time.Millisecond {
		t.Errorf("FlushInterval = %s", cfg.FlushInterval)
	}
	if cfg.SweepInterval != 2*time.Minute {
		t.Errorf("SweepInterval = %s", cfg.SweepInterval)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestFromEnvRejectsBadIntervals(t *testing.T) {
	t.Setenv("HIT_FLUSH_INTERVAL", "-5s")
	t.Setenv("SWEEP_INTERVAL", "soon")
	cfg := FromEnv()

	if cfg.FlushInterval != DefaultFlushInterval {
		t.Errorf("negative interval should fall back, got %s", cfg.FlushInterval)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("unparsable interval should fall back, got %s", cfg.SweepInterval)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := "# comment\nCLIPSHARE_TEST_A=\"from file\"\nCLIPSHARE_TEST_B=file\nnot a pair\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("CLIPSHARE_TEST_B", "from env")
	t.Setenv("CLIPSHARE_TEST_A", "")
	os.Unsetenv("CLIPSHARE_TEST_A")

	loadDotEnv(path)
	t.Cleanup(func() { os.Unsetenv("CLIPSHARE_TEST_A") })

	if got := os.Getenv("CLIPSHARE_TEST_A"); got != "from file" {
		t.Errorf("CLIPSHARE_TEST_A = %q, want %q", got, "from file")
	}
	if got := os.Getenv("CLIPSHARE_TEST_B"); got != "from env" {
		t.Errorf("CLIPSHARE_TEST_B = %q, want %q", got, "from env")
	}
}

func TestOpenDBMigratesSchema(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if !db.Migrator().HasTable("clips") {
		t.Fatal("expected clips table to exist")
	}
	if !db.Migrator().HasIndex(&models.Clip{}, "Expires") {
		t.Error("expected an index on expires")
	}
}
