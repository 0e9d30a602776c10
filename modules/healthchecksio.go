package modules

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kristofferahl/go-healthchecksio"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const checkTag = "Cacophony Playlister"

// Job is a periodically running job reporting to healthchecks.io
type Job interface {
	Name() string
	Interval() time.Duration
}

type checkClient interface {
	GetAll() ([]*healthchecksio.HealthcheckResponse, error)
	Create(check healthchecksio.Healthcheck) (*healthchecksio.HealthcheckResponse, error)
	Update(id string, check healthchecksio.Healthcheck) (*healthchecksio.HealthcheckResponse, error)
}

// Healthchecks registers jobs at healthchecks.io and pings them after successful runs
type Healthchecks struct {
	logger     *zap.Logger
	client     checkClient
	httpClient *http.Client

	mu       sync.RWMutex
	pingURLs map[string]string
}

// NewHealthchecks returns nil if no API key is configured, a nil *Healthchecks ignores all calls
func NewHealthchecks(logger *zap.Logger, apiKey string) *Healthchecks {
	if apiKey == "" {
		return nil
	}

	return newHealthchecks(logger, healthchecksio.NewClient(apiKey))
}

func newHealthchecks(logger *zap.Logger, client checkClient) *Healthchecks {
	return &Healthchecks{
		logger: logger,
		client: client,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		pingURLs: make(map[string]string),
	}
}

func checkName(job Job) string {
	return checkTag + " " + job.Name()
}

func checkCheck(job Job) healthchecksio.Healthcheck {
	return healthchecksio.Healthcheck{
		Channels: "*",
		Grace:    300, // 5 minutes
		Name:     checkName(job),
		Tags:     checkTag,
		Timeout:  int(job.Interval().Seconds()),
		Timezone: "UTC",
	}
}

func checkExists(existingChecks []*healthchecksio.HealthcheckResponse, job Job) *healthchecksio.HealthcheckResponse {
	for _, existingCheck := range existingChecks {
		if existingCheck == nil {
			continue
		}
		if existingCheck.Name != checkName(job) {
			continue
		}

		return existingCheck
	}

	return nil
}

// Register creates or updates a check for every job.
// Failing jobs are logged and skipped.
func (h *Healthchecks) Register(jobs []Job) error {
	if h == nil {
		return nil
	}

	existingChecks, err := h.client.GetAll()
	if err != nil {
		return errors.Wrap(err, "error getting existing checks from healthchecks.io")
	}

	for _, job := range jobs {
		logger := h.logger.With(zap.String("job", job.Name()))

		check := checkExists(existingChecks, job)
		if check == nil {
			check, err = h.client.Create(checkCheck(job))
			if err != nil {
				logger.Error("error creating healthchecks.io check", zap.Error(err))
				continue
			}
			logger.Info("created new healthchecks.io check")
		} else {
			_, err = h.client.Update(check.ID(), checkCheck(job))
			if err != nil {
				logger.Error("error updating healthchecks.io check", zap.Error(err))
			} else {
				logger.Info("updated existing healthchecks.io check")
			}
		}

		if check == nil || check.PingURL == "" {
			continue
		}

		h.mu.Lock()
		h.pingURLs[job.Name()] = check.PingURL
		h.mu.Unlock()
	}

	return nil
}

// Ping reports a successful run of the job
func (h *Healthchecks) Ping(ctx context.Context, job string) error {
	if h == nil {
		return nil
	}

	h.mu.RLock()
	pingURL := h.pingURLs[job]
	h.mu.RUnlock()

	if pingURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "unable to ping healthchecks.io")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected healthchecks.io status %d", resp.StatusCode)
	}

	return nil
}

// OnSuccess pings the check of the job and logs failures
func (h *Healthchecks) OnSuccess(job string) {
	if h == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := h.Ping(ctx, job)
	if err != nil {
		h.logger.Warn("unable to ping healthchecks.io",
			zap.String("job", job),
			zap.Error(err),
		)
	}
}
