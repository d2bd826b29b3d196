package persistance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const binTable = "MassBalanceBins"

type Schema struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewSchema(host string, port int, logger *zap.Logger) *Schema {
	return &Schema{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 10,
		baseDelay:  1 * time.Second,
		logger:     logger,
	}
}

func (s *Schema) CreateTableHTTP(ctx context.Context) error {
	sql := `
		CREATE TABLE IF NOT EXISTS ` + binTable + ` (
			file_id SYMBOL CAPACITY 10000 INDEX,
			result_id SYMBOL CAPACITY 50000 INDEX,
			section_id SYMBOL CAPACITY 1000,
			bin_index LONG,
			x_start DOUBLE,
			x_end DOUBLE,
			station_start DOUBLE,
			station_end DOUBLE,
			dist_m DOUBLE,
			dist_stations DOUBLE,
			area_vt DOUBLE,
			area_pf DOUBLE,
			area_diff DOUBLE,
			cut DOUBLE,
			fill DOUBLE,
			error STRING,
			timestamp TIMESTAMP
		) TIMESTAMP(timestamp) PARTITION BY DAY
		WAL
		DEDUP UPSERT KEYS(timestamp, result_id, section_id, bin_index);
	`

	if err := s.executeQuery(ctx, sql); err != nil {
		return err
	}
	s.logger.Info("QuestDB table ready", zap.String("table", binTable))
	return nil
}

// executeQuery runs sql through the /exec endpoint, backing off while
// QuestDB is still starting.
func (s *Schema) executeQuery(ctx context.Context, query string) error {
	endpoint := fmt.Sprintf("%s/exec?query=%s", s.baseURL, url.QueryEscape(query))

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		delay := s.baseDelay * time.Duration(1<<uint(attempt))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if attempt < s.maxRetries-1 && ctx.Err() == nil {
				s.logger.Warn("QuestDB connection failed, retrying",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", s.maxRetries),
					zap.Duration("delay", delay),
					zap.Error(err))
				if err := sleep(ctx, delay); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("failed to execute query after %d attempts: %w\nAction: Check QUESTDB_HOST and QUESTDB_PORT", attempt+1, err)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusServiceUnavailable {
			if attempt < s.maxRetries-1 {
				s.logger.Warn("QuestDB not ready, retrying",
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt+1),
					zap.Duration("delay", delay))
				if err := sleep(ctx, delay); err != nil {
					return err
				}
				continue
			}
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("query failed with status %d: %s", resp.StatusCode, body)
		}
		return nil
	}

	return fmt.Errorf("failed to execute query after %d retries", s.maxRetries)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
