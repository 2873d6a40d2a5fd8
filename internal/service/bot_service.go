package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/ports"
)

const (
	commandMarker    = "!"
	messageQueueSize = 64

	replyUnknownCommand = "Unknown command. Send !help for the list."
)

type commandHandler func(ctx context.Context, inv *invocation) error

type command struct {
	run       commandHandler
	summary   string
	ownerOnly bool
	groupOnly bool
}

type invocation struct {
	msg  domain.Message
	args []string
}

// BotService consumes inbound messages from a single queue and executes
// marker commands against its registry. Commands run one at a time.
type BotService struct {
	logger           *slog.Logger
	owner            string
	baseURL          string
	uploadsDir       string
	maxDownloadBytes int64

	messenger ports.Messenger
	fetcher   ports.Fetcher
	allowlist *AllowList
	presence  *Presence
	limiter   *senderLimiter

	queue    chan domain.Message
	commands map[string]command
	order    []string
}

func NewBotService(
	logger *slog.Logger,
	cfg config.Config,
	messenger ports.Messenger,
	fetcher ports.Fetcher,
	allowlist *AllowList,
	presence *Presence,
) *BotService {
	s := &BotService{
		logger:           logger,
		owner:            cfg.OwnerJID,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		uploadsDir:       cfg.UploadsDir,
		maxDownloadBytes: int64(cfg.DownloadMaxMB) * 1024 * 1024,
		messenger:        messenger,
		fetcher:          fetcher,
		allowlist:        allowlist,
		presence:         presence,
		limiter:          newSenderLimiter(cfg.CommandsPerMinute),
		queue:            make(chan domain.Message, messageQueueSize),
	}

	s.commands = map[string]command{
		"help":        {run: s.cmdHelp, summary: "list available commands"},
		"download":    {run: s.cmdDownload, summary: "fetch a URL and send it here as a file"},
		"upload":      {run: s.cmdUpload, summary: "reply to a file to publish it and get a link"},
		"addgroup":    {run: s.cmdAddGroup, summary: "allow this group to use the bot", ownerOnly: true, groupOnly: true},
		"removegroup": {run: s.cmdRemoveGroup, summary: "remove this group from the allowed list", ownerOnly: true, groupOnly: true},
		"listgroups":  {run: s.cmdListGroups, summary: "list the allowed groups", ownerOnly: true},
		"status":      {run: s.cmdStatus, summary: "show connection state and allowed group count", ownerOnly: true},
	}
	s.order = []string{"help", "download", "upload", "addgroup", "removegroup", "listgroups", "status"}

	return s
}

// Enqueue hands a message to the processing loop without blocking the
// transport callback. Messages beyond the queue capacity are dropped.
func (s *BotService) Enqueue(msg domain.Message) {
	select {
	case s.queue <- msg:
	default:
		s.logger.Warn("message queue full, dropping message", "chat", msg.Chat)
	}
}

func (s *BotService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.queue:
			s.handleMessage(ctx, msg)
		}
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg domain.Message) {
	// A command starts with the marker as its very first character.
	if !strings.HasPrefix(msg.Text, commandMarker) {
		return
	}
	if msg.Sender != s.owner && !s.allowlist.Contains(msg.Chat) {
		s.logger.Debug("command from unauthorized chat ignored", "chat", msg.Chat, "sender", msg.Sender)
		return
	}
	if !s.limiter.Allow(msg.Sender) {
		s.logger.Warn("sender over rate limit, command dropped", "sender", msg.Sender)
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Text, commandMarker))
	if len(fields) == 0 {
		_ = s.messenger.SendText(ctx, msg.Chat, replyUnknownCommand)
		return
	}
	name := strings.ToLower(fields[0])

	cmd, ok := s.commands[name]
	if !ok {
		_ = s.messenger.SendText(ctx, msg.Chat, replyUnknownCommand)
		return
	}
	if cmd.ownerOnly && msg.Sender != s.owner {
		s.logger.Debug("owner-only command ignored", "command", name, "sender", msg.Sender)
		return
	}
	if cmd.groupOnly && !msg.IsGroup {
		_ = s.messenger.SendText(ctx, msg.Chat, "That command only works inside a group chat.")
		return
	}

	if err := cmd.run(ctx, &invocation{msg: msg, args: fields[1:]}); err != nil {
		s.replyError(ctx, msg.Chat, name, err)
	}
}

func (s *BotService) replyError(ctx context.Context, chat string, name string, err error) {
	var userErr *domain.UserError
	if errors.As(err, &userErr) {
		_ = s.messenger.SendText(ctx, chat, userErr.Reply)
		return
	}

	s.logger.Error("command failed", "command", name, "chat", chat, "error", err)
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		_ = s.messenger.SendText(ctx, chat, transportErr.Reply)
		return
	}
	_ = s.messenger.SendText(ctx, chat, "Something went wrong. Try again later.")
}

func (s *BotService) cmdHelp(ctx context.Context, inv *invocation) error {
	lines := []string{"Available commands:"}
	for _, name := range s.order {
		cmd := s.commands[name]
		if cmd.ownerOnly && inv.msg.Sender != s.owner {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s%s - %s", commandMarker, name, cmd.summary))
	}
	_ = s.messenger.SendText(ctx, inv.msg.Chat, strings.Join(lines, "\n"))
	return nil
}

func (s *BotService) cmdAddGroup(ctx context.Context, inv *invocation) error {
	if !s.allowlist.Add(inv.msg.Chat) {
		_ = s.messenger.SendText(ctx, inv.msg.Chat, "This group is already on the allowed list.")
		return nil
	}
	s.logger.Info("group allowed", "chat", inv.msg.Chat)
	_ = s.messenger.SendText(ctx, inv.msg.Chat, "This group can use the bot now.")
	return nil
}

func (s *BotService) cmdRemoveGroup(ctx context.Context, inv *invocation) error {
	if !s.allowlist.Remove(inv.msg.Chat) {
		_ = s.messenger.SendText(ctx, inv.msg.Chat, "This group is not on the allowed list.")
		return nil
	}
	s.logger.Info("group removed", "chat", inv.msg.Chat)
	_ = s.messenger.SendText(ctx, inv.msg.Chat, "This group was removed from the allowed list.")
	return nil
}

func (s *BotService) cmdListGroups(ctx context.Context, inv *invocation) error {
	ids := s.allowlist.Snapshot()
	if len(ids) == 0 {
		_ = s.messenger.SendText(ctx, inv.msg.Chat, "No groups are allowed yet.")
		return nil
	}

	lines := make([]string, 0, len(ids)+1)
	lines = append(lines, "Allowed groups:")
	for i, id := range ids {
		name, err := s.messenger.GroupName(ctx, id)
		if err != nil {
			s.logger.Debug("group name lookup failed", "chat", id, "error", err)
		}
		if strings.TrimSpace(name) == "" {
			name = id
		}
		line := fmt.Sprintf("%d. %s (%s)", i+1, name, id)
		if name == id {
			line = fmt.Sprintf("%d. %s", i+1, id)
		}
		lines = append(lines, line)
	}
	_ = s.messenger.SendText(ctx, inv.msg.Chat, strings.Join(lines, "\n"))
	return nil
}

func (s *BotService) cmdStatus(ctx context.Context, inv *invocation) error {
	state := "Offline"
	if s.presence.Online() {
		state = "Online"
	}
	text := fmt.Sprintf("Status: %s\nAllowed groups: %d", state, s.allowlist.Len())
	_ = s.messenger.SendText(ctx, inv.msg.Chat, text)
	return nil
}
