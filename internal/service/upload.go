package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

const (
	replyUploadFailed = "Sorry, fetching the attachment failed. Try again later."
	replySaveFailed   = "Sorry, saving the file failed. Try again later."
)

func (s *BotService) cmdUpload(ctx context.Context, inv *invocation) error {
	quoted := inv.msg.Quoted
	if quoted == nil || !quoted.HasMedia {
		return &domain.UserError{Reply: "Use !upload as a reply to a file."}
	}

	attachment, err := s.messenger.DownloadQuoted(ctx, quoted)
	if err != nil {
		return &domain.TransportError{Reply: replyUploadFailed, Err: fmt.Errorf("download attachment: %w", err)}
	}
	if attachment == nil || len(attachment.Data) == 0 {
		return &domain.TransportError{Reply: replyUploadFailed, Err: errors.New("attachment decoded empty")}
	}

	name := strconv.FormatInt(time.Now().UnixNano(), 10) + extensionForMIME(attachment.MimeType)
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return &domain.TransportError{Reply: replySaveFailed, Err: err}
	}
	path := filepath.Join(s.uploadsDir, name)
	if err := os.WriteFile(path, attachment.Data, 0o644); err != nil {
		return &domain.TransportError{Reply: replySaveFailed, Err: fmt.Errorf("write %s: %w", path, err)}
	}
	s.logger.Info("attachment published", "file", name, "bytes", len(attachment.Data), "mime", attachment.MimeType)

	_ = s.messenger.SendText(ctx, inv.msg.Chat, s.baseURL+"/uploads/"+name)
	return nil
}

// extensionForMIME maps the attachment MIME type to a file extension,
// preferring the common WhatsApp media types over the platform table.
func extensionForMIME(mimeType string) string {
	mt := strings.TrimSpace(mimeType)
	if mt == "" {
		return ".bin"
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}

	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
