package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

const replyDownloadFailed = "Sorry, the download failed. Check the URL and try again."

func (s *BotService) cmdDownload(ctx context.Context, inv *invocation) error {
	if len(inv.args) == 0 {
		return &domain.UserError{Reply: "Please provide a URL to download."}
	}
	rawURL := inv.args[0]

	result, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return &domain.TransportError{Reply: replyDownloadFailed, Err: fmt.Errorf("fetch %s: %w", rawURL, err)}
	}
	defer result.Body.Close()

	// The file lives in its own temp directory so the original base name
	// is preserved for the recipient.
	tempDir, err := os.MkdirTemp("", "bot-download-*")
	if err != nil {
		return &domain.TransportError{Reply: replyDownloadFailed, Err: err}
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, result.Filename)
	written, err := s.writeBody(tempPath, result.Body)
	if err != nil {
		return &domain.TransportError{Reply: replyDownloadFailed, Err: fmt.Errorf("store %s: %w", rawURL, err)}
	}
	s.logger.Info("download fetched", "url", rawURL, "file", result.Filename, "bytes", written)

	file := domain.OutgoingFile{Path: tempPath, Filename: result.Filename, Caption: result.Filename}
	if err := s.messenger.SendFile(ctx, inv.msg.Chat, file); err != nil {
		return &domain.TransportError{
			Reply: "Sorry, sending the file failed. Try again later.",
			Err:   fmt.Errorf("send %s: %w", result.Filename, err),
		}
	}
	return nil
}

// writeBody copies the response stream to path, enforcing the configured
// size cap when one is set.
func (s *BotService) writeBody(path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	reader := body
	if s.maxDownloadBytes > 0 {
		reader = io.LimitReader(body, s.maxDownloadBytes+1)
	}
	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, err
	}
	if s.maxDownloadBytes > 0 && written > s.maxDownloadBytes {
		return written, fmt.Errorf("file exceeds %d byte limit", s.maxDownloadBytes)
	}
	return written, nil
}
