package models

import (
	"fmt"
	"time"
)

// AgeLabel renders how long ago published was relative to now.
func AgeLabel(published, now time.Time) string {
	seconds := int64(now.Sub(published) / time.Second)
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	case seconds < 172800:
		return "yesterday"
	case seconds < 604800:
		return fmt.Sprintf("%dd ago", seconds/86400)
	default:
		return fmt.Sprintf("%dw ago", seconds/604800)
	}
}
