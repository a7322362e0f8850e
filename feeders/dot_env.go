package feeders

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DotEnvFeeder overlays a .env file and then the environment onto a struct,
// so real variables win over the file. Tags are the same as EnvFeeder's.
type DotEnvFeeder struct {
	Path        string
	Prefix      string
	Environment map[string]string
}

// NewDotEnvFeeder creates a DotEnvFeeder for the file at path.
func NewDotEnvFeeder(path, prefix string) DotEnvFeeder {
	return DotEnvFeeder{Path: path, Prefix: prefix}
}

func (f DotEnvFeeder) Feed(target any) error {
	vars, err := ReadDotEnv(f.Path)
	if err != nil {
		return err
	}
	overlay := f.Environment
	if overlay == nil {
		overlay = processEnvironment()
	}
	for k, v := range overlay {
		vars[k] = v
	}
	return EnvFeeder{Prefix: f.Prefix, Environment: vars}.Feed(target)
}

// ReadDotEnv parses KEY=VALUE lines. Blank lines and # comments are
// skipped, a leading "export " is ignored and matching quotes are removed.
// The process environment is not modified.
func ReadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w at %s:%d", ErrDotEnvInvalidLine, path, lineNum)
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func processEnvironment() map[string]string {
	env := os.Environ()
	out := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		out[k] = v
	}
	return out
}
