package utils

import (
	"time"
)

// ExpiresAfter returns from + hours, truncated to whole seconds.
func ExpiresAfter(from time.Time, hours int) time.Time {
	return from.Add(time.Duration(hours) * time.Hour).Truncate(time.Second)
}

func UnixTimeToTime(unixTime int64) time.Time {
	return time.Unix(unixTime, 0)
}
