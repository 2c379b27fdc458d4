//go:build !darwin && !linux

package storage

import (
	"fmt"
	"runtime"
)

func detectFilesystemType(string) (string, error) {
	return "", fmt.Errorf("%w on %s", errDetectUnsupported, runtime.GOOS)
}
