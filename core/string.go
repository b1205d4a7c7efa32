package core

import (
	"strings"
	"unsafe"
)

// Check if the string is blank
func IsBlankStr(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Create string with spaces
func Spaces(count int) string {
	if count < 1 {
		return ""
	}
	return strings.Repeat(" ", count)
}

// Convert []byte to string without copying.
//
// The []byte must not be modified afterwards.
func UnsafeByt2Str(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Convert string to []byte without copying.
//
// The returned []byte must not be modified.
func UnsafeStr2Byt(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
