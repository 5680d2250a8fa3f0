package model

import "fmt"

// FormatHMS renders seconds as hh:mm:ss. Hours are not wrapped at 24.
func FormatHMS(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}
