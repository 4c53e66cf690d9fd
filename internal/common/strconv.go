package common

import (
	"net/http"
	"strconv"
	"strings"
)

// AtoiDefault parses value, returning def when it is blank or not an integer.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// QueryInt reads an integer query parameter.
func QueryInt(r *http.Request, key string, def int) int {
	return AtoiDefault(r.URL.Query().Get(key), def)
}
