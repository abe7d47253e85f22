package cmd

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// loadEnvironment loads .env from the working directory, falling back to
// the directory of the executable. Variables already set are kept.
func loadEnvironment() {
	candidates := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	for _, envFile := range candidates {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			logrus.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		} else {
			logrus.WithField("file", envFile).Debug("Loaded environment variables")
		}
		return
	}
}
