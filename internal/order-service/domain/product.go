package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog record owned by admin tooling. The order pipeline only reads it.
type Product struct {
	ID         string
	NameRU     string
	NameUZ     string
	Price      decimal.NullDecimal
	IsActive   bool
	InStock    bool
	CategoryID string
	Slug       string
	UpdatedAt  time.Time
}

// AuthoritativePrice is the stored price, or zero when the column is null.
func (p Product) AuthoritativePrice() decimal.Decimal {
	if !p.Price.Valid {
		return decimal.Zero
	}
	return p.Price.Decimal
}

// DisplayName prefers the Russian name, then the Uzbek one.
func (p Product) DisplayName() string {
	switch {
	case p.NameRU != "":
		return p.NameRU
	case p.NameUZ != "":
		return p.NameUZ
	default:
		return UnknownProductName
	}
}

// ProductFilter narrows catalog listings. Zero values mean "no constraint".
type ProductFilter struct {
	CategoryID  string
	Search      string
	ActiveOnly  bool
	InStockOnly bool
	Limit       int
	Offset      int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPattern is Search as a substring LIKE pattern with '\' as the escape
// character, so '%' and '_' in the query match literally.
func (f ProductFilter) SearchPattern() string {
	return "%" + likeEscaper.Replace(f.Search) + "%"
}

type Category struct {
	ID     string
	NameRU string
	NameUZ string
	Slug   string
}

// TelegramSettings is the delivery configuration kept in the system settings singleton.
type TelegramSettings struct {
	BotToken  string
	ChatID    string
	Enabled   bool
	UpdatedAt time.Time
}

// Usable reports whether a message can be delivered with these settings.
func (s TelegramSettings) Usable() bool {
	return s.Enabled && s.BotToken != "" && s.ChatID != ""
}
