package helper

import (
	"os"
	"path/filepath"
)

// GetCfgPath resolves a config filename to a path. Absolute paths win;
// otherwise the working directory and its configs/ subdirectory are checked
// before falling back to /etc/parley.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	if found := searchWorkingDir(filename); found != "" {
		return found
	}
	return filepath.Join("/etc/parley", filename)
}

func searchWorkingDir(filename string) string {
	wd, err := os.Getwd()
	if err != nil || wd == "" {
		return ""
	}

	for _, candidate := range []string{
		filepath.Join(wd, filename),
		filepath.Join(wd, "configs", filename),
	} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}
	return ""
}
