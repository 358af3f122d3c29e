package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nonprofit-records/auth"
	"nonprofit-records/common"
	"nonprofit-records/exports"
	"nonprofit-records/imports"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return app.serve(ctx)
		},
	}
}

func importCmd() *cobra.Command {
	var collection, file, key string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV file into a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := common.ParseCollection(collection)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			summary, _, err := app.imports.Import(cmd.Context(), auth.System, imports.Request{
				Collection:     c,
				CSV:            text,
				IdempotencyKey: key,
			})
			if err != nil {
				return errors.New(common.MessageOf(err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "beneficiaries, volunteers or events")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "CSV file to import, - for stdin")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Replay the completed run registered under this key")
	cmd.MarkFlagRequired("collection")
	return cmd
}

func exportCmd() *cobra.Command {
	var collection, eventID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a collection, or an event's attendees, as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				file exports.File
				err  error
			)
			switch {
			case eventID != "":
				file, _, err = app.exports.ExportAttendees(cmd.Context(), auth.System, eventID)
			case collection != "":
				var c common.Collection
				if c, err = common.ParseCollection(collection); err == nil {
					file, _, err = app.exports.Export(cmd.Context(), auth.System, c)
				}
			default:
				return errors.New("one of --collection or --event is required")
			}
			if err != nil {
				return errors.New(common.MessageOf(err))
			}

			if out == "" {
				out = file.Name
			}
			if out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), file.CSV)
				return err
			}
			if err := os.WriteFile(out, []byte(file.CSV), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "beneficiaries, volunteers or events")
	cmd.Flags().StringVar(&eventID, "event", "", "Export the attendee list of this event id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default: generated name)")
	cmd.MarkFlagsMutuallyExclusive("collection", "event")
	return cmd
}

func tokenCmd() *cobra.Command {
	var uid string
	var admin bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := app.identity.Caller(cmd.Context(), uid)
			if errors.Is(err, auth.ErrAccountNotFound) {
				caller = &auth.Caller{UID: uid}
			} else if err != nil {
				return err
			}
			if admin {
				caller.Admin = true
			}

			token, err := app.tokens.Issue(*caller)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "Account uid")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin regardless of stored claims")
	cmd.MarkFlagRequired("uid")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
