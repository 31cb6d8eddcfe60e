package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/jqsirls/character-canary/internal/errors"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SUPABASE`),
	regexp.MustCompile(`(?i)JWT`),
	regexp.MustCompile(`(?i)OPENAI`),
	regexp.MustCompile(`(?i)SECRET`),
	regexp.MustCompile(`(?i)KEY`),
}

var skippedDirs = map[string]bool{
	"extract":      true,
	"node_modules": true,
}

// ScanRecoveryDir walks the recovery directory and fails when any JSON file
// outside the skipped subtrees contains credential-looking content. Canary
// recovery dumps must never carry secrets.
func ScanRecoveryDir(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	var offenders []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if skippedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, pattern := range secretPatterns {
			if pattern.Match(raw) {
				offenders = append(offenders, fmt.Sprintf("%s (matches %s)", path, pattern.String()))
				break
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewPreflightError("secret scan", err)
	}
	if len(offenders) > 0 {
		return apperrors.New(apperrors.ErrorTypePreflight,
			"secret-looking content found in recovery directory").
			WithDetails(strings.Join(offenders, "; "))
	}
	return nil
}
