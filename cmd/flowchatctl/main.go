package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/flowchat/internal/client"
	"github.com/matheus3301/flowchat/internal/instance"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flowchatctl",
		Short:         "Drive a flowchat daemon over its unix socket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("instance", "", "instance name (overrides config default)")
	pf.String("socket", "", "daemon socket path (defaults to the instance socket)")
	pf.String("tenant", "", "tenant id")
	pf.String("user", "", "acting user id")
	pf.Bool("json", false, "output in JSON format")
	pf.Duration("timeout", 10*time.Second, "per-call timeout")

	// FLOWCHAT_TENANT, FLOWCHAT_USER, ... fill in flags that were not given.
	viper.SetEnvPrefix("FLOWCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)

	root.AddCommand(
		newStatusCmd(),
		newSendCmd(),
		newMessagesCmd(),
		newUnreadCmd(),
		newReadCmd(),
		newInboundCmd(),
		newWatchCmd(),
		newSettingsCmd(),
		newContactsCmd(),
	)
	return root
}

func instanceName() (string, error) {
	name := instance.Resolve(viper.GetString("instance"))
	if err := instance.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func socketPath() (string, error) {
	if p := viper.GetString("socket"); p != "" {
		return p, nil
	}
	name, err := instanceName()
	if err != nil {
		return "", err
	}
	return instance.SocketPath(name), nil
}

func dial() (*client.Client, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	c, err := client.New(path)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", path, err)
	}
	return c, nil
}

// withClient dials the daemon and runs fn under the configured call timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
	defer cancel()
	return fn(ctx, c)
}

func tenant() (string, error) {
	t := viper.GetString("tenant")
	if t == "" {
		return "", errors.New("--tenant (or FLOWCHAT_TENANT) is required")
	}
	return t, nil
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
