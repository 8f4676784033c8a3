package gateway

import (
	"fmt"
	"time"
)

// namaBulan holds Indonesian month names for display timestamps.
var namaBulan = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatWaktu renders a timestamp the way the dashboard displays servo
// log times, e.g. "29 Agustus 2026 14.05.09". Used as the server-side
// fallback when the device does not supply its own waktu.
func FormatWaktu(t time.Time) string {
	return fmt.Sprintf("%d %s %d %02d.%02d.%02d",
		t.Day(), namaBulan[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second(),
	)
}
