package services

import (
	"strings"

	"github.com/google/uuid"
)

// StorageKey returns "<uuid>.<ext>" where ext is whatever follows the last
// dot of filename. Without a usable extension the key is the bare uuid.
func StorageKey(filename string) string {
	id := uuid.NewString()
	ext := Extension(filename)
	if ext == "" {
		return id
	}
	return id + "." + ext
}

// Extension returns the substring after the last "." of filename, or "" when
// there is none or it would put a path separator into a storage key.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	ext := filename[i+1:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
