package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/ports"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/service"
)

// Runtime owns the WhatsApp connection: session restore or QR pairing,
// event translation into domain messages, and presence transitions.
type Runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	presence  *service.Presence
	container *sqlstore.Container
	client    *whatsmeow.Client
	adapter   *Client
}

func NewRuntime(cfg config.Config, logger *slog.Logger, presence *service.Presence) (*Runtime, error) {
	waLogger := newWALogger(logger, "whatsapp")
	container, err := openSessionStore(context.Background(), cfg, waLogger.Sub("session"))
	if err != nil {
		return nil, err
	}
	device, err := sessionDevice(context.Background(), container, cfg.DeviceName)
	if err != nil {
		container.Close()
		return nil, err
	}

	client := whatsmeow.NewClient(device, waLogger.Sub("client"))
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		presence:  presence,
		container: container,
		client:    client,
		adapter:   &Client{wa: client, logger: logger},
	}, nil
}

func (r *Runtime) Messenger() ports.Messenger {
	return r.adapter
}

// Run connects, pairing first when no session is stored, and blocks until
// the context is cancelled.
func (r *Runtime) Run(ctx context.Context, deliver func(domain.Message)) error {
	r.client.AddEventHandler(func(evt any) {
		r.handleEvent(ctx, evt, deliver)
	})

	if r.client.Store.ID == nil {
		qrChan, err := r.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		if err := r.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		go r.renderQR(qrChan)
	} else {
		if err := r.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	<-ctx.Done()
	r.client.Disconnect()
	return nil
}

func (r *Runtime) Close() error {
	return r.container.Close()
}

func (r *Runtime) renderQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			r.logger.Info("scan the QR code with the phone that owns the bot number")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
		case "success":
			r.logger.Info("device linked")
		default:
			r.logger.Warn("pairing event", "event", item.Event)
		}
	}
}

func (r *Runtime) handleEvent(ctx context.Context, evt any, deliver func(domain.Message)) {
	switch v := evt.(type) {
	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		msg, ok := translateMessage(v)
		if !ok {
			return
		}
		deliver(msg)
	case *events.Connected:
		if r.presence.MarkReady() {
			r.logger.Info("session established")
			if err := r.adapter.SendText(ctx, r.cfg.OwnerJID, "Bot is connected and ready."); err != nil {
				r.logger.Error("owner notification failed", "error", err)
			}
		}
	case *events.LoggedOut:
		r.presence.MarkOffline()
		r.logger.Error("session logged out, relink required", "on_connect", v.OnConnect)
	case *events.Disconnected:
		r.logger.Warn("transport disconnected")
	}
}

// translateMessage maps a WhatsApp message event to the domain shape.
// Messages without text can never be commands and are dropped here.
func translateMessage(v *events.Message) (domain.Message, bool) {
	text := messageText(v.Message)
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, false
	}

	msg := domain.Message{
		Chat:    v.Info.Chat.String(),
		Sender:  v.Info.Sender.ToNonAD().String(),
		IsGroup: v.Info.IsGroup,
		Text:    text,
	}
	if quoted, participant := quotedOf(v.Message); quoted != nil {
		msg.Quoted = &domain.Quoted{
			Sender:   participant,
			HasMedia: hasMedia(quoted),
			Payload:  quoted,
		}
	}
	return msg, true
}
