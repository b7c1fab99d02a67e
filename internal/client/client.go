package client

import (
	"fmt"

	"github.com/matheus3301/flowchat/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps the gRPC connection to a daemon.
type Client struct {
	conn     *grpc.ClientConn
	Messages *rpc.MessageServiceClient
	Settings *rpc.SettingsServiceClient
	Contacts *rpc.ContactServiceClient
	Health   healthpb.HealthClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		rpc.DialOption(),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:     conn,
		Messages: rpc.NewMessageServiceClient(conn),
		Settings: rpc.NewSettingsServiceClient(conn),
		Contacts: rpc.NewContactServiceClient(conn),
		Health:   healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
