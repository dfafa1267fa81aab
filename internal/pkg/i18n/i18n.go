// Package i18n holds the user-facing strings of the storefront API in Russian,
// Uzbek and English and picks one per request.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	NameTooShort        = "name_too_short"
	PhoneInvalid        = "phone_invalid"
	ItemsEmpty          = "items_empty"
	QuantityOutOfRange  = "quantity_out_of_range"
	ProductIDMissing    = "product_id_missing"
	MalformedBody       = "malformed_body"
	IdempotencyKeyLong  = "idempotency_key_too_long"
	OrderNumberMissing  = "order_number_missing"
	ProductNotFound     = "product_not_found"
	ProductUnavailable  = "product_unavailable"
	OrderFailed         = "order_failed"
	OrderNotFound       = "order_not_found"
	InvalidStatus       = "invalid_status"
	InvalidTransition   = "invalid_transition"
	Unauthorized        = "unauthorized"
	NotificationFailed  = "notification_failed"
	NotificationSkipped = "notification_skipped"
	Internal            = "internal"
)

// Default is used when nothing in the request matches.
var Default = language.Russian

var supported = []language.Tag{language.Russian, language.Uzbek, language.English}

var matcher = language.NewMatcher(supported)

var messages = map[string][3]string{
	// ru, uz, en
	NameTooShort: {
		"Имя должно содержать не менее 2 символов",
		"Ism kamida 2 ta belgidan iborat bo'lishi kerak",
		"Name must be at least 2 characters long",
	},
	PhoneInvalid: {
		"Укажите номер телефона в формате +998XXXXXXXXX",
		"Telefon raqamini +998XXXXXXXXX formatida kiriting",
		"Phone number must be in the +998XXXXXXXXX format",
	},
	ItemsEmpty: {
		"Корзина пуста",
		"Savat bo'sh",
		"The order has no items",
	},
	QuantityOutOfRange: {
		"Количество должно быть целым числом от 1 до 100",
		"Miqdor 1 dan 100 gacha butun son bo'lishi kerak",
		"Quantity must be a whole number between 1 and 100",
	},
	ProductIDMissing: {
		"Не указан товар",
		"Mahsulot ko'rsatilmagan",
		"Product id is missing",
	},
	MalformedBody: {
		"Некорректный запрос",
		"Noto'g'ri so'rov",
		"Malformed request body",
	},
	IdempotencyKeyLong: {
		"Ключ идемпотентности длиннее 128 символов",
		"Idempotentlik kaliti 128 belgidan uzun",
		"Idempotency key is longer than 128 characters",
	},
	OrderNumberMissing: {
		"Не указан номер заказа",
		"Buyurtma raqami ko'rsatilmagan",
		"Order number is missing",
	},
	ProductNotFound: {
		"Товар не найден",
		"Mahsulot topilmadi",
		"Product not found",
	},
	ProductUnavailable: {
		"Товар «%s» недоступен для заказа",
		"«%s» mahsuloti buyurtma uchun mavjud emas",
		"Product %q is not available for ordering",
	},
	OrderFailed: {
		"Не удалось оформить заказ. Попробуйте ещё раз",
		"Buyurtmani rasmiylashtirib bo'lmadi. Qayta urinib ko'ring",
		"Could not place the order. Please try again",
	},
	OrderNotFound: {
		"Заказ не найден",
		"Buyurtma topilmadi",
		"Order not found",
	},
	InvalidStatus: {
		"Неизвестный статус заказа",
		"Noma'lum buyurtma holati",
		"Unknown order status",
	},
	InvalidTransition: {
		"Нельзя перевести заказ из статуса «%s» в «%s»",
		"Buyurtmani «%s» holatidan «%s» holatiga o'tkazib bo'lmaydi",
		"Cannot move an order from %q to %q",
	},
	Unauthorized: {
		"Требуется авторизация",
		"Avtorizatsiya talab qilinadi",
		"Authorization required",
	},
	NotificationFailed: {
		"Не удалось отправить уведомление",
		"Xabarnomani yuborib bo'lmadi",
		"Could not send the notification",
	},
	NotificationSkipped: {
		"Уведомления Telegram не настроены",
		"Telegram xabarnomalari sozlanmagan",
		"Telegram notifications are not configured",
	},
	Internal: {
		"Внутренняя ошибка сервера",
		"Serverning ichki xatosi",
		"Internal server error",
	},
}

var cat = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Default))
	for key, tr := range messages {
		for i, tag := range supported {
			_ = b.SetString(tag, key, tr[i])
		}
	}
	return b
}()

// Match picks the display language. An explicit override (?lang=) wins over
// the Accept-Language header.
func Match(override, acceptLanguage string) language.Tag {
	if override != "" {
		if tag, err := language.Parse(override); err == nil {
			_, idx, conf := matcher.Match(tag)
			if conf != language.No {
				return supported[idx]
			}
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return supported[idx]
			}
		}
	}
	return Default
}

func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// Sprintf is Printer(tag).Sprintf(key, args...).
func Sprintf(tag language.Tag, key string, args ...any) string {
	return Printer(tag).Sprintf(key, args...)
}
