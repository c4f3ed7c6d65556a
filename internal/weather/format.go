package weather

import (
	"fmt"
	"strings"
	"time"
)

func tempEmoji(temp float64) string {
	switch {
	case temp <= 0:
		return "🥶"
	case temp >= 30:
		return "🥵"
	default:
		return "🙂"
	}
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func hhmm(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("15:04")
}

// Summary renders the user-facing weather reply.
func Summary(city string, cur Current, fc *Forecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Погода в %s сейчас:\n", city)
	fmt.Fprintf(&b, "%s %s\n", tempEmoji(cur.Temp), capitalize(cur.Description))
	fmt.Fprintf(&b, "🌡 Температура: %.1f°C\n", cur.Temp)
	fmt.Fprintf(&b, "💧 Влажность: %d%%\n", cur.Humidity)
	fmt.Fprintf(&b, "🌬 Ветер: %.1f м/с\n", cur.WindSpeed)
	fmt.Fprintf(&b, "🌅 Восход: %s, закат: %s (UTC)", hhmm(cur.Sunrise), hhmm(cur.Sunset))
	if fc != nil {
		fmt.Fprintf(&b, "\n\nЗавтра днём: %.1f°C, %s", fc.Temp, strings.ToLower(fc.Description))
	}
	return b.String()
}
