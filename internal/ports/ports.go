package ports

import (
	"context"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

type Messenger interface {
	SendText(ctx context.Context, chat string, text string) error
	SendFile(ctx context.Context, chat string, file domain.OutgoingFile) error
	DownloadQuoted(ctx context.Context, quoted *domain.Quoted) (*domain.Attachment, error)
	GroupName(ctx context.Context, chat string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error)
}

type AllowedGroupsRepository interface {
	Load() ([]string, error)
	Save(groups []string) error
}
