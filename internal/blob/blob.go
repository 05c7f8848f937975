package blob

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"greening/internal/config"
)

// Store: объектное хранилище вложений. Объект адресуется публичным URL
// вида <public_url_base>/<key>; удаление тоже идёт по URL.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
	Close() error
}

// New выбирает драйвер по cfg.BlobDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobDriver {
	case "", "local":
		return NewLocal(cfg.FilesRoot, cfg.PublicURLBase), nil
	case "s3":
		return NewS3(ctx, S3Options{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			Prefix:     cfg.S3Prefix,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PublicRead: cfg.S3PublicRead,
			PublicBase: cfg.PublicURLBase,
		})
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentials, cfg.PublicURLBase)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// urls переводит ключ в публичный URL и обратно.
type urls struct {
	base string
}

func (u urls) URL(key string) string {
	return strings.TrimRight(u.base, "/") + "/" + strings.TrimLeft(key, "/")
}

// Key извлекает ключ из URL. Чужие URL (не под base) не трогаем.
func (u urls) Key(url string) (string, bool) {
	prefix := strings.TrimRight(u.base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName оставляет от имени файла только базовое имя из безопасных символов.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// KeyGen выдаёт ключи <folder>/<ULID>_<имя>. ulid.Monotonic не потокобезопасен, поэтому под мьютексом.
type KeyGen struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewKeyGen() *KeyGen {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &KeyGen{entropy: ulid.Monotonic(src, 0), now: time.Now}
}

func (g *KeyGen) New(folder, filename string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()

	name := strings.ToLower(id.String()) + "_" + SafeName(filename)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}
