package cache

import "fmt"

func DisplayNameKey(userID string) string {
	return fmt.Sprintf("identity:name:%s", userID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
