// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с часовыми поясами и разбор временных меток сообщений.
package common

import (
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadLocation загружает часовой пояс по имени (APP_TIMEZONE).
// Если зона не найдена — возвращает UTC и пишет предупреждение.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в заданном часовом поясе.
// Используется для отображения времени окончания голосований.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// ParseMessageTS разбирает временную метку сообщения Slack ("1700000000.123456")
// в time.Time. Второе значение false, если метка не похожа на Unix-время.
//
// Примеры:
//
//	ParseMessageTS("100.5")  → 1970-01-01 00:01:40.5 UTC, true
//	ParseMessageTS("abc")    → time.Time{}, false
func ParseMessageTS(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}

	sec, frac, _ := strings.Cut(ts, ".")
	seconds, err := strconv.ParseInt(sec, 10, 64)
	if err != nil || seconds < 0 {
		return time.Time{}, false
	}

	var nanos int64
	if frac != "" {
		// Дополняем дробную часть до 9 знаков (наносекунды)
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		nanos, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || nanos < 0 {
			return time.Time{}, false
		}
	}

	return time.Unix(seconds, nanos).UTC(), true
}
