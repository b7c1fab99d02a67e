package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/flowchat/internal/client"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/spf13/cobra"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage contacts",
	}
	cmd.AddCommand(newContactsUpsertCmd(), newContactsGetCmd())
	return cmd
}

func printContact(ct *rpc.Contact) {
	fmt.Printf("ID:    %s\n", ct.ID)
	fmt.Printf("Name:  %s\n", ct.Name)
	fmt.Printf("Phone: %s\n", ct.Phone)
}

func newContactsUpsertCmd() *cobra.Command {
	var id, name, phone string
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create a contact, or update it when --id is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			req := &rpc.UpsertContactRequest{Contact: &rpc.Contact{ID: id, TenantID: tenantID, Name: name, Phone: phone}}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Contacts.UpsertContact(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				printContact(resp.Contact)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "existing contact id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number as entered")
	return cmd
}

func newContactsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <contact-id>",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenant()
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Contacts.GetContact(ctx, &rpc.GetContactRequest{TenantID: tenantID, ID: args[0]})
				if err != nil {
					return err
				}
				if jsonOutput() {
					outputJSON(resp)
					return nil
				}
				printContact(resp.Contact)
				return nil
			})
		},
	}
}
