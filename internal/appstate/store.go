package appstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"grain-workers/internal/common/logger"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Storage keys, one value per user.
const (
	KeySession           = "grain_session_v1"
	KeyRemoteBundle      = "grain_remote_bundle_v1"
	KeyCollectedCards    = "grain_collected_cards_v1"
	KeyAPIConfig         = "grain_api_config_v1"
	KeyViewedByDay       = "grain_viewed_by_day_v1"
	KeyExploredCountries = "grain_explored_countries_v1"
	KeyFeedback          = "grain_feedback_v1"
)

const (
	DefaultPrefix         = "grain"
	DefaultImageCacheSize = 16
	defaultMaxImageUsers  = 1024
	anonymousUser         = "anonymous"
)

type Options struct {
	// Prefix namespaces every key; blank uses DefaultPrefix.
	Prefix string
	// ImageCacheSize bounds the cached images per user.
	ImageCacheSize int
	// MaxImageUsers bounds how many users keep an image cache at once.
	MaxImageUsers int
	// Now is the clock used for day keys and feedback timestamps.
	Now func() time.Time
}

type Store struct {
	kv     KV
	prefix string
	now    func() time.Time
	logger logger.Logger

	locks sync.Map

	imageSize int
	images    *lru.Cache[string, *lru.Cache[string, string]]
	imagesMu  sync.Mutex
}

func NewStore(kv KV, opts Options, log logger.Logger) (*Store, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ImageCacheSize <= 0 {
		opts.ImageCacheSize = DefaultImageCacheSize
	}
	if opts.MaxImageUsers <= 0 {
		opts.MaxImageUsers = defaultMaxImageUsers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	images, err := lru.New[string, *lru.Cache[string, string]](opts.MaxImageUsers)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &Store{
		kv:        kv,
		prefix:    opts.Prefix,
		now:       opts.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "appstate"}),
		imageSize: opts.ImageCacheSize,
		images:    images,
	}, nil
}

func userKey(userID string) string {
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return anonymousUser
}

func (s *Store) key(userID, name string) string {
	return s.prefix + ":" + userKey(userID) + ":" + name
}

// lock serializes read-modify-write sequences for one user within this
// process.
func (s *Store) lock(userID string) func() {
	m, _ := s.locks.LoadOrStore(userKey(userID), &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// read decodes the stored value into out. Missing keys and JSON null leave
// out untouched and report false. Undecodable values are logged and treated
// as missing.
func (s *Store) read(ctx context.Context, userID, name string, out interface{}) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(userID, name))
	if err != nil || !ok {
		return false, err
	}
	if string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("Discarding unreadable state value", map[string]interface{}{
			"key":   name,
			"error": err.Error(),
		})
		return false, nil
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, userID, name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.kv.Set(ctx, s.key(userID, name), raw)
}

func (s *Store) remove(ctx context.Context, userID, name string) error {
	return s.kv.Del(ctx, s.key(userID, name))
}

func (s *Store) dayKey() string {
	return s.now().Format("2006-01-02")
}
