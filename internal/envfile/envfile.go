// SPDX-License-Identifier: AGPL-3.0-only

// Package envfile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already present in the environment are never
// overridden, so real environment always wins over file contents.
package envfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Result summarizes one load attempt for logging.
type Result struct {
	Path   string
	Loaded bool
	Keys   int
	Err    error
}

// Load reads the .env file named by MCP_CHAT_ENV_PATH, or searches for a
// .env file from the working directory upwards. A missing file is not an
// error; the zero Result is returned.
func Load() Result {
	if override := strings.TrimSpace(os.Getenv("MCP_CHAT_ENV_PATH")); override != "" {
		return LoadPath(override)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Result{Err: err}
	}
	path := findUpwards(cwd, ".env")
	if path == "" {
		return Result{}
	}
	return LoadPath(path)
}

// LoadPath reads the .env file at path. Blank lines and # comments are
// skipped; an "export " prefix and surrounding quotes are stripped.
func LoadPath(path string) Result {
	res := Result{Path: path}
	file, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer file.Close()
	res.Loaded = true

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			res.Err = err
			return res
		}
		res.Keys++
	}
	if err := scanner.Err(); err != nil {
		res.Err = err
	}
	return res
}

func parseLine(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(line[idx+1:])
	return key, stripQuotes(value), true
}

func stripQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

func findUpwards(start, filename string) string {
	dir := start
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
