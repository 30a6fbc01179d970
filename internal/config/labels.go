package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadLabels reads the display-label overrides at {dir}/labels. Each line
// is "package.name=Display Name". If the file does not exist, an empty map
// is returned without an error. Invalid or malformed lines are silently
// skipped.
func LoadLabels(dir string) (map[string]string, error) {
	labels := make(map[string]string)

	f, err := os.Open(filepath.Join(dir, "labels"))
	if err != nil {
		if os.IsNotExist(err) {
			return labels, nil
		}
		return labels, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// The first "=" separates package from label; labels may contain "=".
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		pkg := strings.TrimSpace(line[:idx])
		label := strings.TrimSpace(line[idx+1:])
		if pkg == "" || label == "" {
			continue
		}

		labels[pkg] = label
	}

	if err := scanner.Err(); err != nil {
		return labels, err
	}

	return labels, nil
}
