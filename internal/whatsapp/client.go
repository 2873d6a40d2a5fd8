package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

// Client adapts the whatsmeow client to the ports.Messenger surface.
type Client struct {
	wa     *whatsmeow.Client
	logger *slog.Logger
}

func (c *Client) SendText(ctx context.Context, chat string, text string) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("parse jid %q: %w", chat, err)
	}
	_, err = c.wa.SendMessage(ctx, jid, &waProto.Message{Conversation: proto.String(text)})
	return err
}

func (c *Client) SendFile(ctx context.Context, chat string, file domain.OutgoingFile) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("parse jid %q: %w", chat, err)
	}
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Path, err)
	}

	uploaded, err := c.wa.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Filename)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	document := &waProto.DocumentMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		Mimetype:      proto.String(mimeType),
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
		FileName:      proto.String(file.Filename),
	}
	if strings.TrimSpace(file.Caption) != "" {
		document.Caption = proto.String(file.Caption)
	}

	_, err = c.wa.SendMessage(ctx, jid, &waProto.Message{DocumentMessage: document})
	return err
}

func (c *Client) DownloadQuoted(ctx context.Context, quoted *domain.Quoted) (*domain.Attachment, error) {
	payload, ok := quoted.Payload.(*waProto.Message)
	if !ok || payload == nil {
		return nil, errors.New("quoted payload unavailable")
	}
	data, err := c.wa.DownloadAny(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return &domain.Attachment{Data: data, MimeType: mediaMimeType(payload)}, nil
}

func (c *Client) GroupName(ctx context.Context, chat string) (string, error) {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return "", fmt.Errorf("parse jid %q: %w", chat, err)
	}
	info, err := c.wa.GetGroupInfo(ctx, jid)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func messageText(msg *waProto.Message) string {
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

func quotedOf(msg *waProto.Message) (*waProto.Message, string) {
	contextInfo := msg.GetExtendedTextMessage().GetContextInfo()
	return contextInfo.GetQuotedMessage(), contextInfo.GetParticipant()
}

func hasMedia(msg *waProto.Message) bool {
	return msg.GetDocumentMessage() != nil ||
		msg.GetImageMessage() != nil ||
		msg.GetVideoMessage() != nil ||
		msg.GetAudioMessage() != nil ||
		msg.GetStickerMessage() != nil
}

func mediaMimeType(msg *waProto.Message) string {
	switch {
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetMimetype()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetMimetype()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetMimetype()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetMimetype()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetMimetype()
	}
	return ""
}
