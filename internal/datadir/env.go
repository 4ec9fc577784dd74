package datadir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileEnvVar names a single .env file to load instead of the defaults.
const EnvFileEnvVar = "TWEETSAVER_ENV_FILE"

// LoadEnv loads .env files in priority order. A key set by an earlier file
// or already present in the environment is never overridden.
//
// Search order:
//  1. TWEETSAVER_ENV_FILE (if set, only that file is loaded)
//  2. {dataRoot}/.env
//  3. ./.env
//  4. {dir}/.env for each extra dir
func LoadEnv(dataRoot string, dirs ...string) error {
	files := FindEnvFiles(dataRoot, dirs...)
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// FindEnvFiles returns the .env files LoadEnv would read, skipping ones
// that do not exist.
func FindEnvFiles(dataRoot string, dirs ...string) []string {
	var found []string
	for _, p := range findEnvPaths(dataRoot, dirs...) {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	return found
}

func findEnvPaths(dataRoot string, dirs ...string) []string {
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		return []string{override}
	}

	var paths []string
	if dataRoot != "" {
		paths = append(paths, filepath.Join(dataRoot, ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	for _, d := range dirs {
		if d != "" {
			paths = append(paths, filepath.Join(d, ".env"))
		}
	}

	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, p)
	}
	return out
}
