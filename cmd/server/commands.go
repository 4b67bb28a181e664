package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"admincore/internal/config"
	"admincore/internal/model"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Storage.Driver == config.DriverMemory {
		log.Info("Memory storage has no schema, nothing to migrate")
		return nil
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	log.Info("Storage migrated and settings seeded", zap.String("driver", cfg.Storage.Driver))
	return nil
}

func runRemind(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	var report any
	switch {
	case resetFlag:
		report, err = a.scheduler.ResetAll(ctx)
	case bulkDaysFlag >= 0:
		report, err = a.scheduler.SendBulk(ctx, bulkDaysFlag)
	default:
		report, err = a.scheduler.Run(ctx)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

// runDigest flushes a digest on a running server; the queue lives in that
// process.
func runDigest(cmd *cobra.Command, _ []string) error {
	freq := model.Frequency(strings.ToLower(frequencyFlag))
	if freq != model.FrequencyDaily && freq != model.FrequencyWeekly {
		return fmt.Errorf("--frequency must be daily or weekly, got %q", frequencyFlag)
	}
	body, err := json.Marshal(map[string]model.Frequency{"frequency": freq})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	url := strings.TrimRight(serverFlag, "/") + "/api/notifications/digest"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("digest failed: %s: %s", resp.Status, strings.TrimSpace(string(out)))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
