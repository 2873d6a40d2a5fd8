package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
)

func openSessionStore(ctx context.Context, cfg config.Config, log waLog.Logger) (*sqlstore.Container, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SessionDBPath), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", cfg.SessionDBPath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, log)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", cfg.SessionDBPath, err)
	}
	return container, nil
}

// sessionDevice returns the stored device, or registers a fresh one that
// still needs QR pairing.
func sessionDevice(ctx context.Context, container *sqlstore.Container, pushName string) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if len(devices) > 0 {
		return devices[len(devices)-1], nil
	}

	device := container.NewDevice()
	device.PushName = pushName
	return device, nil
}
