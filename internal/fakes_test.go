package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/WelcomerTeam/Sticker-Daemon/telegram"
	"go.uber.org/atomic"
)

var errFakeNotFound = errors.New("Bad Request: STICKERSET_INVALID")

// fakeSource serves sticker sets and files from memory.
type fakeSource struct {
	mu sync.Mutex

	sets  map[string]*telegram.StickerSet
	files map[string]*telegram.File
	data  map[string][]byte

	fileErrs map[string]error

	setCalls      atomic.Int32
	fileCalls     atomic.Int32
	downloadCalls atomic.Int32

	downloadDelay time.Duration
	active        atomic.Int32
	maxActive     atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		sets:     make(map[string]*telegram.StickerSet),
		files:    make(map[string]*telegram.File),
		data:     make(map[string][]byte),
		fileErrs: make(map[string]error),
	}
}

// addPack adds a pack whose i'th sticker is stored at path(i) with content(i).
func (fs *fakeSource) addPack(name string, count int, path func(i int) string, content func(i int) []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	set := &telegram.StickerSet{Name: name, Title: "Pack " + name}

	for i := 0; i < count; i++ {
		fileID := fmt.Sprintf("%s-file-%03d", name, i)
		filePath := path(i)

		set.Stickers = append(set.Stickers, &telegram.Sticker{FileID: fileID, Emoji: "🙂", SetName: name})
		fs.files[fileID] = &telegram.File{FileID: fileID, FilePath: filePath}
		fs.data[filePath] = content(i)
	}

	fs.sets[name] = set
}

func (fs *fakeSource) failFile(fileID string, err error) {
	fs.mu.Lock()
	fs.fileErrs[fileID] = err
	fs.mu.Unlock()
}

func (fs *fakeSource) GetStickerSet(_ context.Context, name string) (*telegram.StickerSet, error) {
	fs.setCalls.Inc()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	set, ok := fs.sets[name]
	if !ok {
		return nil, errFakeNotFound
	}

	return set, nil
}

func (fs *fakeSource) GetFile(_ context.Context, fileID string) (*telegram.File, error) {
	fs.fileCalls.Inc()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.fileErrs[fileID]; err != nil {
		return nil, err
	}

	file, ok := fs.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}

	return file, nil
}

func (fs *fakeSource) DownloadFile(_ context.Context, filePath string) ([]byte, error) {
	fs.downloadCalls.Inc()

	active := fs.active.Inc()
	defer fs.active.Dec()

	for {
		highest := fs.maxActive.Load()
		if active <= highest || fs.maxActive.CompareAndSwap(highest, active) {
			break
		}
	}

	if fs.downloadDelay > 0 {
		time.Sleep(fs.downloadDelay)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	b, ok := fs.data[filePath]
	if !ok {
		return nil, errors.New("file not found")
	}

	return append([]byte(nil), b...), nil
}

type sentMessage struct {
	Body   tamtam.NewMessageBody
	UserID int64
}

// fakeMessenger records uploads and sent messages.
type fakeMessenger struct {
	mu sync.Mutex

	uploads []string
	sent    []sentMessage

	uploadErr error
	// sendFunc decides the result of each send. nil accepts every message.
	sendFunc func(body tamtam.NewMessageBody) error

	tokens atomic.Int32
}

func (fm *fakeMessenger) GetUploadURL(_ context.Context, uploadType tamtam.UploadType) (*tamtam.UploadEndpoint, error) {
	return &tamtam.UploadEndpoint{URL: "https://upload.example/" + string(uploadType)}, nil
}

func (fm *fakeMessenger) UploadFile(_ context.Context, _ string, fileName string, reader io.Reader) (*tamtam.UploadedInfo, error) {
	if fm.uploadErr != nil {
		return nil, fm.uploadErr
	}

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}

	fm.mu.Lock()
	fm.uploads = append(fm.uploads, fileName)
	fm.mu.Unlock()

	n := fm.tokens.Inc()

	return &tamtam.UploadedInfo{Token: fmt.Sprintf("token-%d", n), FileID: int64(n)}, nil
}

func (fm *fakeMessenger) SendMessage(_ context.Context, userID int64, body tamtam.NewMessageBody, _ tamtam.SendOptions) error {
	fm.mu.Lock()
	fm.sent = append(fm.sent, sentMessage{UserID: userID, Body: body})
	sendFunc := fm.sendFunc
	fm.mu.Unlock()

	if sendFunc != nil {
		return sendFunc(body)
	}

	return nil
}

func (fm *fakeMessenger) messages() []sentMessage {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	return append([]sentMessage(nil), fm.sent...)
}

func (fm *fakeMessenger) uploaded() []string {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	return append([]string(nil), fm.uploads...)
}

func fileNotProcessedError() error {
	return tamtam.NewAPIError(400, []byte(`{"code":"attachment.not.ready","message":"Key: errors.process.attachment.file.not.processed"}`))
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (rs *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	rs.mu.Lock()
	rs.delays = append(rs.delays, d)
	rs.mu.Unlock()

	return ctx.Err()
}
