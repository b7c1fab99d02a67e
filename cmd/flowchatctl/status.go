package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/flowchat/internal/client"
	"github.com/matheus3301/flowchat/internal/instance"
	"github.com/matheus3301/flowchat/internal/lock"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type statusReport struct {
	Instance string            `json:"instance"`
	Running  bool              `json:"running"`
	PID      int               `json:"pid,omitempty"`
	Since    string            `json:"since,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running and serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := instanceName()
			if err != nil {
				return err
			}
			report := statusReport{Instance: name}

			dir := instance.Dir(name)
			if _, err := lock.ReadOwner(dir); !lock.IsNotExist(err) {
				report.Running = lock.Held(dir)
			}
			if report.Running {
				if owner, err := lock.ReadOwner(dir); err == nil {
					report.PID = owner.PID
					report.Since = owner.Since.Format(time.RFC3339)
				}
				err := withClient(cmd, func(ctx context.Context, c *client.Client) error {
					report.Services = checkServices(ctx, c)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if jsonOutput() {
				outputJSON(report)
				return nil
			}
			fmt.Printf("Instance: %s\n", report.Instance)
			if !report.Running {
				fmt.Println("Daemon:   stopped")
				return nil
			}
			fmt.Printf("Daemon:   running (pid %d since %s)\n", report.PID, report.Since)
			for _, svc := range serviceNames {
				fmt.Printf("  %-36s %s\n", svc, report.Services[svc])
			}
			return nil
		},
	}
}

var serviceNames = []string{
	rpc.MessageServiceName,
	rpc.SettingsServiceName,
	rpc.ContactServiceName,
}

func checkServices(ctx context.Context, c *client.Client) map[string]string {
	out := make(map[string]string, len(serviceNames))
	for _, svc := range serviceNames {
		resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			out[svc] = "unreachable: " + err.Error()
			continue
		}
		out[svc] = resp.Status.String()
	}
	return out
}
