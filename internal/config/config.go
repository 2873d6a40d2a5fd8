package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              int
	BaseURL           string
	OwnerJID          string
	DataDir           string
	SessionDBPath     string
	AllowedGroupsFile string
	UploadsDir        string
	DeviceName        string
	DownloadTimeout   time.Duration
	DownloadMaxMB     int
	CommandsPerMinute int
	WebAllowCORS      bool
	LogLevel          string
	LogFilePath       string
	LogMaxSizeMB      int
	LogMaxBackups     int
	LogMaxAgeDays     int
}

func LoadFromEnv() (Config, error) {
	dataDir := defaultString(os.Getenv("DATA_DIR"), "./data")

	port, err := parseIntWithDefault("PORT", 3000)
	if err != nil {
		return Config{}, err
	}
	downloadTimeoutMs, err := parseIntWithDefault("DOWNLOAD_TIMEOUT_MS", 120000)
	if err != nil {
		return Config{}, err
	}
	downloadMaxMB, err := parseIntWithDefault("DOWNLOAD_MAX_MB", 64)
	if err != nil {
		return Config{}, err
	}
	commandsPerMinute, err := parseIntWithDefault("COMMANDS_PER_MINUTE", 30)
	if err != nil {
		return Config{}, err
	}
	webAllowCORS, err := parseBoolWithDefault("WEB_ALLOW_CORS", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:              port,
		BaseURL:           defaultString(os.Getenv("BASE_URL"), fmt.Sprintf("http://localhost:%d", port)),
		OwnerJID:          strings.TrimSpace(os.Getenv("OWNER_JID")),
		DataDir:           dataDir,
		SessionDBPath:     filepath.Join(dataDir, "whatsapp.db"),
		AllowedGroupsFile: defaultString(os.Getenv("ALLOWED_GROUPS_FILE"), "allowed-groups.json"),
		UploadsDir:        defaultString(os.Getenv("UPLOADS_DIR"), filepath.Join("public", "uploads")),
		DeviceName:        defaultString(os.Getenv("DEVICE_NAME"), "Direct URL Uploader"),
		DownloadTimeout:   time.Duration(downloadTimeoutMs) * time.Millisecond,
		DownloadMaxMB:     downloadMaxMB,
		CommandsPerMinute: commandsPerMinute,
		WebAllowCORS:      webAllowCORS,
		LogLevel:          defaultString(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
		LogFilePath:       filepath.Join(dataDir, "logs", "bot.log"),
		LogMaxSizeMB:      10,
		LogMaxBackups:     5,
		LogMaxAgeDays:     14,
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.OwnerJID == "" {
		return errors.New("OWNER_JID is required")
	}
	if !strings.Contains(cfg.OwnerJID, "@") {
		return fmt.Errorf("OWNER_JID must be a full JID like 15551234567@s.whatsapp.net: got %q", cfg.OwnerJID)
	}
	if cfg.Port <= 0 {
		return fmt.Errorf("PORT must be > 0: got %d", cfg.Port)
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("BASE_URL must start with http:// or https://: got %q", cfg.BaseURL)
	}
	if cfg.DownloadMaxMB < 0 {
		return fmt.Errorf("DOWNLOAD_MAX_MB must be >= 0: got %d", cfg.DownloadMaxMB)
	}
	if cfg.CommandsPerMinute < 0 {
		return fmt.Errorf("COMMANDS_PER_MINUTE must be >= 0: got %d", cfg.CommandsPerMinute)
	}
	return nil
}

func parseIntWithDefault(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be integer: %w", key, err)
	}
	return v, nil
}

func parseBoolWithDefault(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be boolean: %w", key, err)
	}
	return v, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
