package lsms

import (
	"fmt"
	"path/filepath"
	"runtime"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// NumCPU is the number of cores available to the merge workers.
var NumCPU = runtime.NumCPU()

// ConvertToAbsolute returns path made absolute relative to baseDir if it was relative.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, path))
	if err != nil {
		return "", fmt.Errorf("can't make %q absolute against %q: %v", path, baseDir, err)
	}
	return abs, nil
}
