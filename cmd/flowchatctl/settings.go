package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/flowchat/internal/client"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage bridge settings",
	}
	cmd.AddCommand(
		newSettingsGetCmd(),
		newSettingsSetCmd(),
		newSettingsResolveCmd(),
		newSettingsTestCmd(),
	)
	return cmd
}

// scope returns the tenant and, with --personal, the acting user.
func scope(personal bool) (string, string, error) {
	tenantID, err := tenant()
	if err != nil {
		return "", "", err
	}
	if !personal {
		return tenantID, "", nil
	}
	userID := viper.GetString("user")
	if userID == "" {
		return "", "", errors.New("--personal needs --user (or FLOWCHAT_USER)")
	}
	return tenantID, userID, nil
}

func printSettings(s *rpc.ChatSettings) {
	if s == nil {
		fmt.Println("Not configured.")
		return
	}
	owner := "tenant default"
	if s.UserID != "" {
		owner = "user " + s.UserID
	}
	fmt.Printf("Scope:         %s\n", owner)
	fmt.Printf("Endpoint:      %s\n", s.APIEndpoint)
	fmt.Printf("API key:       %s\n", s.APIKey)
	fmt.Printf("Secret set:    %v\n", s.APISecretSet)
	fmt.Printf("Active:        %v\n", s.IsActive)
	fmt.Printf("Auto-create:   %v\n", s.AutoCreateContacts)
	fmt.Printf("Notifications: %v\n", s.EnableNotifications)
	fmt.Printf("Updated:       %s\n", formatMs(s.UpdatedAtUnixMs))
}

func newSettingsGetCmd() *cobra.Command {
	var personal bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the stored settings row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, userID, err := scope(personal)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Settings.GetSettings(ctx, &rpc.GetSettingsRequest{TenantID: tenantID, UserID: userID})
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				printSettings(resp.Settings)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&personal, "personal", false, "the acting user's row instead of the tenant default")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		personal      bool
		endpoint      string
		apiKey        string
		apiSecret     string
		clearSecret   bool
		active        bool
		autoCreate    bool
		notifications bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a settings row; unset flags keep stored values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, userID, err := scope(personal)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if clearSecret && apiSecret != "" {
				return errors.New("--secret and --clear-secret are mutually exclusive")
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				cur, err := c.Settings.GetSettings(ctx, &rpc.GetSettingsRequest{TenantID: tenantID, UserID: userID})
				if err != nil {
					return err
				}
				s := cur.Settings
				if s == nil {
					s = &rpc.ChatSettings{IsActive: true}
				}
				s.TenantID, s.UserID = tenantID, userID
				if flags.Changed("endpoint") {
					s.APIEndpoint = endpoint
				}
				if flags.Changed("key") {
					s.APIKey = apiKey
				}
				// An empty secret tells the daemon to keep the stored one.
				s.APISecret = apiSecret
				if flags.Changed("active") {
					s.IsActive = active
				}
				if flags.Changed("auto-create") {
					s.AutoCreateContacts = autoCreate
				}
				if flags.Changed("notifications") {
					s.EnableNotifications = notifications
				}

				resp, err := c.Settings.SaveSettings(ctx, &rpc.SaveSettingsRequest{Settings: s, ClearSecret: clearSecret})
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				printSettings(resp.Settings)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&personal, "personal", false, "write the acting user's row instead of the tenant default")
	f.StringVar(&endpoint, "endpoint", "", "bridge base URL")
	f.StringVar(&apiKey, "key", "", "bridge API key")
	f.StringVar(&apiSecret, "secret", "", "bridge API secret")
	f.BoolVar(&clearSecret, "clear-secret", false, "remove the stored API secret")
	f.BoolVar(&active, "active", true, "whether the row is used")
	f.BoolVar(&autoCreate, "auto-create", false, "create unknown contacts on inbound messages")
	f.BoolVar(&notifications, "notifications", false, "enable notifications")
	return cmd
}

func newSettingsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show the settings a send by the acting user would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.ResolveSettingsRequest{TenantID: tenantID, UserID: viper.GetString("user")}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Settings.ResolveSettings(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				if resp.Source == "" {
					fmt.Println("Not configured.")
					return nil
				}
				fmt.Printf("Source:        %s\n", resp.Source)
				printSettings(resp.Settings)
				return nil
			})
		},
	}
}

func newSettingsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the bridge with the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.TestConnectionRequest{TenantID: tenantID, UserID: viper.GetString("user")}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Settings.TestConnection(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				if resp.OK {
					fmt.Printf("OK (%s settings)\n", resp.Source)
					return nil
				}
				return fmt.Errorf("connection test failed: %s", resp.Error)
			})
		},
	}
}
