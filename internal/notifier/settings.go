package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/cache"
)

// SettingsProvider returns the Telegram configuration in effect right now.
type SettingsProvider interface {
	TelegramSettings(ctx context.Context) (domain.TelegramSettings, error)
}

// StoreSettings reads the settings singleton on every call.
type StoreSettings struct {
	repo ports.SettingsRepository
}

func NewStoreSettings(repo ports.SettingsRepository) *StoreSettings {
	return &StoreSettings{repo: repo}
}

func (s *StoreSettings) TelegramSettings(ctx context.Context) (domain.TelegramSettings, error) {
	return s.repo.GetTelegramSettings(ctx)
}

// CachedSettings keeps the last read in a cache.Cache for ttl. Admin updates
// must call Invalidate so the next order sees the new settings.
type CachedSettings struct {
	next  SettingsProvider
	cache cache.Cache
	ttl   time.Duration
	key   string
}

func NewCachedSettings(next SettingsProvider, c cache.Cache, ttl time.Duration) *CachedSettings {
	return &CachedSettings{
		next:  next,
		cache: c,
		ttl:   ttl,
		key:   cache.Key("settings", "telegram"),
	}
}

type cachedTelegram struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

func (c *CachedSettings) TelegramSettings(ctx context.Context) (domain.TelegramSettings, error) {
	if raw, ok, err := c.cache.Get(ctx, c.key); err != nil {
		slog.WarnContext(ctx, "settings cache read failed", "error", err)
	} else if ok {
		var ct cachedTelegram
		if err := json.Unmarshal([]byte(raw), &ct); err == nil {
			return domain.TelegramSettings{BotToken: ct.BotToken, ChatID: ct.ChatID, Enabled: ct.Enabled}, nil
		}
	}

	s, err := c.next.TelegramSettings(ctx)
	if err != nil {
		return domain.TelegramSettings{}, err
	}

	raw, _ := json.Marshal(cachedTelegram{BotToken: s.BotToken, ChatID: s.ChatID, Enabled: s.Enabled})
	if err := c.cache.Set(ctx, c.key, string(raw), c.ttl); err != nil {
		slog.WarnContext(ctx, "settings cache write failed", "error", err)
	}
	return s, nil
}

func (c *CachedSettings) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, c.key)
}
