package modules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kristofferahl/go-healthchecksio"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
)

type fakeJob struct {
	name     string
	interval time.Duration
}

func (f fakeJob) Name() string { return f.name }
func (f fakeJob) Interval() time.Duration { return f.interval }

type fakeClient struct {
	existing  []*healthchecksio.HealthcheckResponse
	created   []healthchecksio.Healthcheck
	updated   []healthchecksio.Healthcheck
	createErr error
	pingURL   string
}

func (f *fakeClient) GetAll() ([]*healthchecksio.HealthcheckResponse, error) {
	return f.existing, nil
}

func (f *fakeClient) Create(check healthchecksio.Healthcheck) (*healthchecksio.HealthcheckResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, check)
	return &healthchecksio.HealthcheckResponse{Name: check.Name, PingURL: f.pingURL}, nil
}

func (f *fakeClient) Update(_ string, check healthchecksio.Healthcheck) (*healthchecksio.HealthcheckResponse, error) {
	f.updated = append(f.updated, check)
	return &healthchecksio.HealthcheckResponse{Name: check.Name}, nil
}

func TestRegisterAndPing(t *testing.T) {
	var pings int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pings, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &fakeClient{
		existing: []*healthchecksio.HealthcheckResponse{
			nil,
			{Name: "Cacophony Playlister expiry-monthly", PingURL: server.URL + "/monthly"},
		},
		pingURL: server.URL + "/weekly",
	}
	checks := newHealthchecks(zaptest.NewLogger(t), client)

	err := checks.Register([]Job{
		fakeJob{name: "expiry-weekly", interval: time.Hour},
		fakeJob{name: "expiry-monthly", interval: 2 * time.Hour},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if len(client.created) != 1 || client.created[0].Timeout != 3600 || client.created[0].Grace != 300 {
		t.Errorf("created = %+v", client.created)
	}
	if len(client.updated) != 1 || client.updated[0].Name != "Cacophony Playlister expiry-monthly" {
		t.Errorf("updated = %+v", client.updated)
	}

	for _, job := range []string{"expiry-weekly", "expiry-monthly", "expiry-yearly"} {
		if err := checks.Ping(context.Background(), job); err != nil {
			t.Errorf("Ping(%s) error = %v", job, err)
		}
	}
	if got := atomic.LoadInt32(&pings); got != 2 {
		t.Errorf("pings = %d, want 2", got)
	}
}

func TestRegisterSkipsFailedChecks(t *testing.T) {
	client := &fakeClient{createErr: errors.New("unauthorised")}
	checks := newHealthchecks(zaptest.NewLogger(t), client)

	err := checks.Register([]Job{fakeJob{name: "expiry-weekly", interval: time.Hour}})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(checks.pingURLs) != 0 {
		t.Errorf("ping urls = %v", checks.pingURLs)
	}
}

func TestNilHealthchecks(t *testing.T) {
	checks := NewHealthchecks(zaptest.NewLogger(t), "")
	if checks != nil {
		t.Fatal("expected nil without api key")
	}

	if err := checks.Register([]Job{fakeJob{name: "expiry-weekly"}}); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if err := checks.Ping(context.Background(), "expiry-weekly"); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	checks.OnSuccess("expiry-weekly")
}
