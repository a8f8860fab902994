package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/joho/godotenv"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LoadDotEnv exports the variables of a .env file into the process
// environment. Variables already set are kept. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return nil
}

// ReadDotEnv returns the variables of a .env file without exporting them.
func ReadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file %s: %w", path, err)
	}
	return vars, nil
}

// ExpandEnv replaces ${VAR} and ${VAR:-fallback} with values from the
// environment. Unset variables without a fallback become empty. A bare
// $VAR is left alone.
func ExpandEnv(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envRefPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
