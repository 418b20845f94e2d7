package settings

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ordishs/gocore"
)

func getString(key, defaultValue string) string {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	return value
}

func getMultiString(key, defaultValue string) []string {
	value := getString(key, defaultValue)

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}

	return result
}

func getInt(key string, defaultValue int) int {
	value, found := gocore.Config().GetInt(key)
	if !found {
		return defaultValue
	}

	return value
}

func getInt64(key string, defaultValue int64) int64 {
	value, found := gocore.Config().GetInt(key)
	if !found {
		return defaultValue
	}

	return int64(value)
}

func getMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Millisecond
}

func getURL(key, defaultValue string) *url.URL {
	value, err, _ := gocore.Config().GetURL(key, defaultValue)
	if err != nil {
		return nil
	}

	return value
}

func getBool(key string, defaultValue bool) bool {
	return gocore.Config().GetBool(key, defaultValue)
}

func getFloat64(key string, defaultValue float64) float64 {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return f
}
