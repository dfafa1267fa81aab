package notifier

import (
	"html"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

const currencySuffix = "so'm"

// FormatOrderMessage renders the Telegram text for a new order. Customer-supplied
// fields are HTML-escaped since the message is sent with parse_mode=HTML.
func FormatOrderMessage(s ports.OrderSummary, p *message.Printer) string {
	var b strings.Builder

	b.WriteString("🛒 <b>Новый заказ ")
	b.WriteString(html.EscapeString(s.OrderNumber))
	b.WriteString("</b>\n\n")

	b.WriteString("👤 Клиент: ")
	b.WriteString(html.EscapeString(s.CustomerName))
	b.WriteString("\n📞 Телефон: ")
	b.WriteString(html.EscapeString(s.CustomerPhone))
	b.WriteString("\n\n<b>Товары:</b>\n")

	for i, it := range s.Items {
		b.WriteString(p.Sprintf("%d. ", i+1))
		b.WriteString(html.EscapeString(it.Name))
		b.WriteString(p.Sprintf(" × %d", it.Quantity))
		if opts := formatOptions(it.SelectedOptions.Size, it.SelectedOptions.Color); opts != "" {
			b.WriteString(" (")
			b.WriteString(html.EscapeString(opts))
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(FormatPrice(p, it.LinePrice))
		b.WriteString("\n")
	}

	b.WriteString("\n💰 <b>Итого: ")
	b.WriteString(FormatPrice(p, s.TotalPrice))
	b.WriteString("</b>")

	if msg := strings.TrimSpace(s.CustomerMessage); msg != "" {
		b.WriteString("\n\n💬 Комментарий: ")
		b.WriteString(html.EscapeString(msg))
	}
	return b.String()
}

// FormatPrice groups digits the way the printer's locale does and appends the
// currency. Unparseable amounts are printed as given.
func FormatPrice(p *message.Printer, amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount + " " + currencySuffix
	}
	return p.Sprintf("%v", number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(2))) + " " + currencySuffix
}

func formatOptions(size, color string) string {
	var parts []string
	if size != "" {
		parts = append(parts, "размер: "+size)
	}
	if color != "" {
		parts = append(parts, "цвет: "+color)
	}
	return strings.Join(parts, ", ")
}
