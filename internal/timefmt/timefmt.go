// Package timefmt renders on-disk Unix timestamps the way the original
// filesystem-inspection tool did, via C's strftime("%a %b %d %H:%M:%S %Y").
package timefmt

import "time"

// Format renders a Unix epoch timestamp as "Mon Jan 02 15:04:05 2006".
func Format(epoch uint32) string {
	return time.Unix(int64(epoch), 0).Format("Mon Jan 02 15:04:05 2006")
}
