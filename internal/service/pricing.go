package service

const (
	// MentorSessionFeeRate комиссия платформы для менторских сессий.
	// DefaultEscrowFeeRate применяется в общем escrow-пути, когда ставка не задана.
	// Константы намеренно не объединены: продукт не подтвердил единую ставку.
	MentorSessionFeeRate = 0.20
	DefaultEscrowFeeRate = 0.15

	// Минимальная оплачиваемая длительность - 15 минут
	minBillableHours = 0.25
)

// Валюты, которые платформа принимает напрямую
var supportedCurrencies = map[string]bool{
	"usd": true,
	"eur": true,
	"gbp": true,
	"cad": true,
	"aud": true,
}

// SessionAmount считает стоимость сессии: ставка в час * длительность,
// но не меньше минимальной оплачиваемой длительности
func SessionAmount(hourlyRate float64, durationMinutes int) float64 {
	hours := float64(durationMinutes) / 60
	if hours < minBillableHours {
		hours = minBillableHours
	}
	return hourlyRate * hours
}

// SplitAmount делит сумму на комиссию платформы и выплату ментору
func SplitAmount(amount, feeRate float64) (fee, payout float64) {
	fee = amount * feeRate
	payout = amount - fee
	return fee, payout
}

// ResolveCurrency возвращает предпочитаемую валюту покупателя,
// если она поддерживается, иначе базовую валюту платформы
func ResolveCurrency(preferred, base string) string {
	if supportedCurrencies[preferred] {
		return preferred
	}
	return base
}
