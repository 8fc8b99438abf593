package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	service "github.com/okian/armory/internal/app"
	"github.com/okian/armory/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run fetches the report described by config and renders it to out.
func Run(ctx context.Context, config *Config, out io.Writer) (service.BatchResult, error) {
	if err := config.Validate(); err != nil {
		return service.BatchResult{}, err
	}
	log := logger.Get().Named("report")
	start := time.Now()

	client := NewClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return service.BatchResult{}, fmt.Errorf("service health check failed: %w", err)
	}

	var (
		res service.BatchResult
		err error
	)
	if len(config.Characters) > 0 {
		log.Info(ctx, "requesting batch", logger.Int("characters", len(config.Characters)))
		res, err = client.Batch(ctx, config.Characters, config.Region)
	} else {
		log.Info(ctx, "requesting team", logger.String("team", config.Team))
		res, err = client.Team(ctx, config.Team, config.Region)
	}
	if err != nil {
		return service.BatchResult{}, fmt.Errorf("overview request failed: %w", err)
	}

	if err := Render(out, res, config.Verbose); err != nil {
		return res, fmt.Errorf("render: %w", err)
	}

	if config.OutputFile != "" {
		if err := save(config.OutputFile, res); err != nil {
			log.Warn(ctx, "failed to save report", logger.String("file", config.OutputFile), logger.Error(err))
		}
	}

	log.Info(ctx, "report complete",
		logger.Int("resolved", len(res.Overviews)),
		logger.Int("failed", len(res.Failures)),
		logger.Duration("took", time.Since(start)))
	return res, nil
}

func save(path string, res service.BatchResult) error {
	if err := os.MkdirAll(filepath.Dir(path), directoryPermission); err != nil {
		return err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermission)
}
