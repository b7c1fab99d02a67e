package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/flowchat/internal/client"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newSendCmd() *cobra.Command {
	var (
		msgType string
		media   string
		sender  string
	)
	cmd := &cobra.Command{
		Use:   "send <contact-id> <text...>",
		Short: "Store a message and dispatch it to the bridge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.SendMessageRequest{
				TenantID:    tenantID,
				ContactID:   args[0],
				UserID:      viper.GetString("user"),
				SenderType:  sender,
				Content:     strings.Join(args[1:], " "),
				MessageType: msgType,
				MediaURL:    media,
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messages.SendMessage(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("Message: %s (%s)\n", resp.Message.ID, resp.Message.Status)
				fmt.Printf("Outcome: %s\n", resp.Outcome)
				if resp.Reason != "" {
					fmt.Printf("Reason:  %s\n", resp.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&msgType, "type", "", "message type (text, image, ...)")
	cmd.Flags().StringVar(&media, "media", "", "media URL")
	cmd.Flags().StringVar(&sender, "as", "", "sender type: user or contact")
	return cmd
}

func newMessagesCmd() *cobra.Command {
	var (
		limit    int32
		before   string
		beforeID string
	)
	cmd := &cobra.Command{
		Use:   "messages <contact-id>",
		Short: "List a conversation, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.ListMessagesRequest{TenantID: tenantID, ContactID: args[0], Limit: limit}
			if before != "" {
				ts, err := time.Parse(time.RFC3339, before)
				if err != nil {
					return fmt.Errorf("--before: %w", err)
				}
				req.BeforeUnixMs = ts.UnixMilli()
				req.BeforeID = beforeID
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messages.ListMessages(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				if len(resp.Messages) == 0 {
					fmt.Println("No messages.")
					return nil
				}
				for _, m := range resp.Messages {
					fmt.Printf("%s  %-7s %-10s %s\n", formatMs(m.CreatedAtUnixMs), m.SenderType, m.Status, m.Content)
				}
				if resp.HasMore {
					fmt.Printf("(more: --before %s --before-id %s)\n",
						time.UnixMilli(resp.NextBeforeUnixMs).UTC().Format(time.RFC3339Nano), resp.NextBeforeID)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&before, "before", "", "only messages created before this RFC3339 time")
	cmd.Flags().StringVar(&beforeID, "before-id", "", "id of the last message seen, to page within one millisecond")
	return cmd
}

func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread [contact-id]",
		Short: "Show unread counts for one contact or the whole tenant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if len(args) == 1 {
					resp, err := c.Messages.GetUnreadCount(ctx, &rpc.GetUnreadCountRequest{TenantID: tenantID, ContactID: args[0]})
					if err != nil {
						return err
					}
					if jsonOutput() {
						outputJSON(resp)
						return nil
					}
					fmt.Println(resp.Count)
					return nil
				}

				resp, err := c.Messages.ListUnread(ctx, &rpc.ListUnreadRequest{TenantID: tenantID})
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				if len(resp.Counts) == 0 {
					fmt.Println("Nothing unread.")
					return nil
				}
				ids := make([]string, 0, len(resp.Counts))
				for id := range resp.Counts {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Printf("%-40s %d\n", id, resp.Counts[id])
				}
				return nil
			})
		},
	}
}

func newReadCmd() *cobra.Command {
	var contactID string
	cmd := &cobra.Command{
		Use:   "read [message-id]",
		Short: "Mark a message, or every message from a contact, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (contactID != "") {
				return errors.New("give either a message id or --contact")
			}
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				var (
					resp *rpc.MarkReadResponse
					err  error
				)
				if contactID != "" {
					resp, err = c.Messages.MarkContactRead(ctx, &rpc.MarkContactReadRequest{TenantID: tenantID, ContactID: contactID})
				} else {
					resp, err = c.Messages.MarkRead(ctx, &rpc.MarkReadRequest{TenantID: tenantID, MessageID: args[0]})
				}
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("Accepted: %v\n", resp.Accepted)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contactID, "contact", "", "mark every unread message from this contact")
	return cmd
}

func newInboundCmd() *cobra.Command {
	var (
		name       string
		externalID string
		msgType    string
		media      string
	)
	cmd := &cobra.Command{
		Use:   "inbound <phone> <text...>",
		Short: "Record a message received from a contact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.RecordInboundRequest{
				TenantID:    tenantID,
				Phone:       args[0],
				Name:        name,
				Content:     strings.Join(args[1:], " "),
				MessageType: msgType,
				MediaURL:    media,
				ExternalID:  externalID,
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messages.RecordInbound(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("Message: %s\n", resp.Message.ID)
				fmt.Printf("Contact: %s (created: %v)\n", resp.Contact.ID, resp.ContactCreated)
				if resp.Duplicate {
					fmt.Println("Duplicate of an earlier delivery.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "contact name when the contact is created")
	cmd.Flags().StringVar(&externalID, "external-id", "", "bridge message id used for dedup")
	cmd.Flags().StringVar(&msgType, "type", "", "message type")
	cmd.Flags().StringVar(&media, "media", "", "media URL")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream daemon events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Messages.WatchEvents(cmd.Context(), &rpc.WatchEventsRequest{TenantID: tenantID, Prefix: prefix})
			if err != nil {
				return err
			}
			for {
				ev, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if status.Code(err) == codes.Canceled {
					return nil
				}
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(ev)
					continue
				}
				fmt.Printf("%s  %-28s %s\n", formatMs(ev.OccurredAtUnixMs), ev.Kind, ev.Payload)
			}
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "event kind prefix (default message.)")
	return cmd
}
