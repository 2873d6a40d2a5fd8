package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

const (
	testOwner  = "15551234567@s.whatsapp.net"
	testSender = "15559876543@s.whatsapp.net"
	testGroup  = "120363000000000000@g.us"
)

type sentMessage struct {
	chat string
	text string
}

type sentFile struct {
	chat     string
	path     string
	filename string
	caption  string
	existed  bool
}

type fakeMessenger struct {
	mu          sync.Mutex
	sent        []sentMessage
	files       []sentFile
	sendFileErr error
	attachment  *domain.Attachment
	downloadErr error
	downloads   int
	groupNames  map[string]string
}

func (m *fakeMessenger) SendText(_ context.Context, chat string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chat: chat, text: text})
	return nil
}

func (m *fakeMessenger) SendFile(_ context.Context, chat string, file domain.OutgoingFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, statErr := os.Stat(file.Path)
	m.files = append(m.files, sentFile{
		chat:     chat,
		path:     file.Path,
		filename: file.Filename,
		caption:  file.Caption,
		existed:  statErr == nil,
	})
	return m.sendFileErr
}

func (m *fakeMessenger) DownloadQuoted(context.Context, *domain.Quoted) (*domain.Attachment, error) {
	m.downloads++
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return m.attachment, nil
}

func (m *fakeMessenger) GroupName(_ context.Context, chat string) (string, error) {
	return m.groupNames[chat], nil
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeFetcher struct {
	body     string
	filename string
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*domain.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.FetchResult{
		Body:     io.NopCloser(strings.NewReader(f.body)),
		Filename: f.filename,
		Size:     int64(len(f.body)),
	}, nil
}

type fakeRepo struct {
	groups  []string
	saved   [][]string
	loadErr error
	saveErr error
}

func (r *fakeRepo) Load() ([]string, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.groups, nil
}

func (r *fakeRepo) Save(groups []string) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, groups)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot(t *testing.T) (*BotService, *fakeMessenger, *fakeFetcher, *fakeRepo) {
	t.Helper()
	messenger := &fakeMessenger{groupNames: map[string]string{}}
	fetcher := &fakeFetcher{body: "payload", filename: "a.txt"}
	repo := &fakeRepo{}
	logger := quietLogger()
	cfg := config.Config{
		OwnerJID:      testOwner,
		BaseURL:       "http://localhost:3000",
		UploadsDir:    t.TempDir(),
		DownloadMaxMB: 1,
	}
	bot := NewBotService(logger, cfg, messenger, fetcher, NewAllowList(logger, repo), NewPresence())
	return bot, messenger, fetcher, repo
}

func ownerMessage(text string) domain.Message {
	return domain.Message{Chat: testOwner, Sender: testOwner, Text: text}
}

func groupMessage(sender string, text string) domain.Message {
	return domain.Message{Chat: testGroup, Sender: sender, IsGroup: true, Text: text}
}

func TestIgnoresNonMarkerMessages(t *testing.T) {
	bot, messenger, fetcher, _ := newTestBot(t)

	tests := []struct {
		name string
		text string
	}{
		{name: "plain text", text: "hello there"},
		{name: "marker mid-text", text: "try !help"},
		{name: "leading space before marker", text: " !help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot.handleMessage(context.Background(), ownerMessage(tt.text))
			if len(messenger.sent) != 0 {
				t.Fatalf("expected no replies, got %v", messenger.sent)
			}
			if fetcher.calls != 0 {
				t.Fatalf("expected no fetches, got %d", fetcher.calls)
			}
		})
	}
}

func TestIgnoresUnauthorizedSenders(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), groupMessage(testSender, "!help"))
	bot.handleMessage(context.Background(), domain.Message{Chat: testSender, Sender: testSender, Text: "!download http://example.com/a.txt"})

	if len(messenger.sent) != 0 {
		t.Fatalf("expected silence for unauthorized senders, got %v", messenger.sent)
	}
}

func TestAllowedGroupMembersCanUseCommands(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	bot.allowlist.Add(testGroup)

	bot.handleMessage(context.Background(), groupMessage(testSender, "!help"))

	if len(messenger.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(messenger.sent))
	}
	help := messenger.sent[0].text
	if !strings.Contains(help, "!download") || !strings.Contains(help, "!upload") {
		t.Fatalf("help missing shared commands: %q", help)
	}
	if strings.Contains(help, "!addgroup") || strings.Contains(help, "!status") {
		t.Fatalf("help leaked owner commands to member: %q", help)
	}
}

func TestHelpShowsOwnerCommandsToOwner(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!HELP"))

	if len(messenger.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(messenger.sent))
	}
	help := messenger.sent[0].text
	for _, name := range []string{"!help", "!download", "!upload", "!addgroup", "!removegroup", "!listgroups", "!status"} {
		if !strings.Contains(help, name) {
			t.Fatalf("help missing %s: %q", name, help)
		}
	}
}

func TestUnknownCommandReplies(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!frobnicate"))
	bot.handleMessage(context.Background(), ownerMessage("!"))

	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(messenger.sent))
	}
	for _, sent := range messenger.sent {
		if sent.text != replyUnknownCommand {
			t.Fatalf("unexpected reply: %q", sent.text)
		}
	}
}

func TestOwnerOnlyCommandsSilentForOthers(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	bot.allowlist.Add(testGroup)

	bot.handleMessage(context.Background(), groupMessage(testSender, "!status"))
	bot.handleMessage(context.Background(), groupMessage(testSender, "!listgroups"))
	bot.handleMessage(context.Background(), groupMessage(testSender, "!addgroup"))

	if len(messenger.sent) != 0 {
		t.Fatalf("expected silence for owner-only commands, got %v", messenger.sent)
	}
}

func TestStatusReportsStateAndCount(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!status"))
	if got := messenger.sent[0].text; !strings.Contains(got, "Offline") || !strings.Contains(got, "0") {
		t.Fatalf("offline status mismatch: %q", got)
	}

	bot.presence.MarkReady()
	bot.allowlist.Add(testGroup)
	bot.handleMessage(context.Background(), ownerMessage("!status"))
	if got := messenger.sent[1].text; !strings.Contains(got, "Online") || !strings.Contains(got, "1") {
		t.Fatalf("online status mismatch: %q", got)
	}
}

func TestAddRemoveGroupPersists(t *testing.T) {
	bot, messenger, _, repo := newTestBot(t)

	bot.handleMessage(context.Background(), groupMessage(testOwner, "!addgroup"))
	if !bot.allowlist.Contains(testGroup) {
		t.Fatalf("expected group in allow-list after addgroup")
	}

	bot.handleMessage(context.Background(), groupMessage(testOwner, "!removegroup"))
	if bot.allowlist.Contains(testGroup) {
		t.Fatalf("expected group gone after removegroup")
	}

	if len(repo.saved) != 2 {
		t.Fatalf("expected 2 persists, got %d", len(repo.saved))
	}
	if last := repo.saved[len(repo.saved)-1]; len(last) != 0 {
		t.Fatalf("expected empty persisted list, got %v", last)
	}
	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 confirmations, got %d", len(messenger.sent))
	}
}

func TestGroupCommandsRejectedInDirectChat(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!addgroup"))

	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0].text, "group chat") {
		t.Fatalf("expected group-chat correction, got %v", messenger.sent)
	}
	if bot.allowlist.Len() != 0 {
		t.Fatalf("expected allow-list unchanged")
	}
}

func TestListGroupsResolvesNames(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	bot.allowlist.Add(testGroup)
	messenger.groupNames[testGroup] = "Family"

	bot.handleMessage(context.Background(), ownerMessage("!listgroups"))

	got := messenger.sent[0].text
	if !strings.Contains(got, "1. Family ("+testGroup+")") {
		t.Fatalf("listgroups mismatch: %q", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Fatalf("expected exactly one entry, got %q", got)
	}
}

func TestListGroupsFallsBackToJID(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	bot.allowlist.Add(testGroup)

	bot.handleMessage(context.Background(), ownerMessage("!listgroups"))

	if got := messenger.sent[0].text; !strings.Contains(got, "1. "+testGroup) {
		t.Fatalf("expected jid fallback, got %q", got)
	}
}

func TestDownloadRequiresURL(t *testing.T) {
	bot, messenger, fetcher, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!download"))

	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0].text, "provide a URL") {
		t.Fatalf("expected url correction, got %v", messenger.sent)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no fetch without url, got %d", fetcher.calls)
	}
}

func TestDownloadSendsTempFileAndCleansUp(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), ownerMessage("!download http://files.example/a.txt"))

	if len(messenger.files) != 1 {
		t.Fatalf("expected 1 file sent, got %d", len(messenger.files))
	}
	file := messenger.files[0]
	if file.filename != "a.txt" || file.caption != "a.txt" {
		t.Fatalf("file naming mismatch: %+v", file)
	}
	if filepath.Base(file.path) != "a.txt" {
		t.Fatalf("temp file base mismatch: %q", file.path)
	}
	if !file.existed {
		t.Fatalf("temp file missing at send time")
	}
	if _, err := os.Stat(file.path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("attachment is the reply, got extra texts %v", messenger.sent)
	}
}

func TestDownloadFetchFailureReplies(t *testing.T) {
	bot, messenger, fetcher, _ := newTestBot(t)
	fetcher.err = errors.New("connection refused")

	bot.handleMessage(context.Background(), ownerMessage("!download http://files.example/a.txt"))

	if len(messenger.files) != 0 {
		t.Fatalf("expected no file sent, got %v", messenger.files)
	}
	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0].text, "download failed") {
		t.Fatalf("expected download failure reply, got %v", messenger.sent)
	}
}

func TestDownloadSendFailureCleansUp(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	messenger.sendFileErr = errors.New("media upload rejected")

	bot.handleMessage(context.Background(), ownerMessage("!download http://files.example/a.txt"))

	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0].text, "sending the file failed") {
		t.Fatalf("expected send failure reply, got %v", messenger.sent)
	}
	if _, err := os.Stat(messenger.files[0].path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind after send failure: %v", err)
	}
}

func TestDownloadTooLargeFails(t *testing.T) {
	bot, messenger, fetcher, _ := newTestBot(t)
	fetcher.body = strings.Repeat("x", 1<<20+1)

	bot.handleMessage(context.Background(), ownerMessage("!download http://files.example/big.bin"))

	if len(messenger.files) != 0 {
		t.Fatalf("expected oversized file rejected, got %v", messenger.files)
	}
	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0].text, "download failed") {
		t.Fatalf("expected download failure reply, got %v", messenger.sent)
	}
}

func TestUploadRequiresQuotedMedia(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	noQuote := ownerMessage("!upload")
	bot.handleMessage(context.Background(), noQuote)

	textQuote := ownerMessage("!upload")
	textQuote.Quoted = &domain.Quoted{Sender: testSender}
	bot.handleMessage(context.Background(), textQuote)

	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 corrections, got %d", len(messenger.sent))
	}
	for _, sent := range messenger.sent {
		if !strings.Contains(sent.text, "reply to a file") {
			t.Fatalf("unexpected correction: %q", sent.text)
		}
	}
	if messenger.downloads != 0 {
		t.Fatalf("expected no attachment downloads, got %d", messenger.downloads)
	}
	assertDirEmpty(t, bot.uploadsDir)
}

func TestUploadPublishesAttachment(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	messenger.attachment = &domain.Attachment{Data: []byte("file-bytes"), MimeType: "image/jpeg"}

	msg := ownerMessage("!upload")
	msg.Quoted = &domain.Quoted{Sender: testSender, HasMedia: true}
	bot.handleMessage(context.Background(), msg)

	if len(messenger.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(messenger.sent))
	}
	link := messenger.sent[0].text
	if !strings.HasPrefix(link, "http://localhost:3000/uploads/") || !strings.HasSuffix(link, ".jpg") {
		t.Fatalf("unexpected link: %q", link)
	}

	entries, err := os.ReadDir(bot.uploadsDir)
	if err != nil {
		t.Fatalf("read uploads dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 published file, got %d", len(entries))
	}
	content, err := os.ReadFile(filepath.Join(bot.uploadsDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if string(content) != "file-bytes" {
		t.Fatalf("published content mismatch: %q", string(content))
	}
	if !strings.HasSuffix(link, entries[0].Name()) {
		t.Fatalf("link %q does not point at %q", link, entries[0].Name())
	}
}

func TestUploadDownloadFailureWritesNothing(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)

	msg := ownerMessage("!upload")
	msg.Quoted = &domain.Quoted{Sender: testSender, HasMedia: true}

	messenger.downloadErr = errors.New("media gone")
	bot.handleMessage(context.Background(), msg)

	messenger.downloadErr = nil
	messenger.attachment = nil
	bot.handleMessage(context.Background(), msg)

	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 failure replies, got %d", len(messenger.sent))
	}
	for _, sent := range messenger.sent {
		if !strings.Contains(sent.text, "fetching the attachment failed") {
			t.Fatalf("unexpected failure reply: %q", sent.text)
		}
	}
	assertDirEmpty(t, bot.uploadsDir)
}

func TestRunConsumesQueue(t *testing.T) {
	bot, messenger, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = bot.Run(ctx)
		close(done)
	}()

	bot.Enqueue(ownerMessage("!help"))

	deadline := time.Now().Add(2 * time.Second)
	for messenger.sentCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("queued command was not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}
