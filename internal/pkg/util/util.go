package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenerateRandomString Generate random hex string from length random bytes
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// StrToInt64 Convert string to int64
func StrToInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// Int64ToStr Convert int64 to string
func Int64ToStr(i int64) string {
	return strconv.FormatInt(i, 10)
}

// DefaultIfEmpty Return default value if string is empty
func DefaultIfEmpty(s, defaultVal string) string {
	if s == "" {
		return defaultVal
	}
	return s
}

// Page turns 1-based page/size query values into offset and limit, clamping
// size to [1, maxSize].
func Page(pageStr, sizeStr string, defSize, maxSize int) (offset, limit int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 1 {
		size = defSize
	}
	if size > maxSize {
		size = maxSize
	}
	return (page - 1) * size, size
}

// SplitTags splits a comma separated tag list, trimming and dropping empties
// and duplicates while keeping the first spelling.
func SplitTags(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
