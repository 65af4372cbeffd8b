package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// HealthReport is the outcome of one readiness probe.
type HealthReport struct {
	Target  string
	Status  string
	Raw     string
	Latency time.Duration
}

// Serving reports whether the backend declared itself ready.
func (h HealthReport) Serving() bool {
	return h.Status == healthpb.HealthCheckResponse_SERVING.String()
}

// CheckHealth dials target and calls the standard gRPC health service. service may
// be empty for overall server health.
func CheckHealth(ctx context.Context, target, service string, timeout time.Duration) (HealthReport, error) {
	report := HealthReport{Target: strings.TrimSpace(target)}
	if report.Target == "" {
		return report, errors.New("speech health target is empty")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(report.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return report, fmt.Errorf("dial speech backend %q: %w", report.Target, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return report, fmt.Errorf("wait for speech backend readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	report.Latency = time.Since(started)
	if err != nil {
		return report, fmt.Errorf("speech backend health check: %w", err)
	}
	report.Status = resp.GetStatus().String()
	if raw, err := protojson.Marshal(resp); err == nil {
		report.Raw = string(raw)
	}
	if !report.Serving() {
		return report, fmt.Errorf("speech backend %s reports %s", report.Target, report.Status)
	}
	return report, nil
}

// waitForReady blocks until the connection is Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
