package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ruteri/event-signin/clients"
	"github.com/ruteri/event-signin/cmd/flags"
	"github.com/ruteri/event-signin/interfaces"
	"github.com/ruteri/event-signin/keys"
	"github.com/ruteri/event-signin/storage"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "sign-in server base URL",
}

var flagSecret = &cli.StringFlag{
	Name:     "secret",
	Required: true,
	Usage:    "event secret whose attendance log to inspect",
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "admin",
		Usage:  "Manage event secrets and inspect attendance logs",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "keys",
				Usage: "Manage the list of accepted secrets",
				Flags: []cli.Flag{flags.KeysFileFlag},
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "Print the accepted secrets",
						Action: func(cCtx *cli.Context) error {
							list, err := keys.Load(cCtx.String(flags.KeysFileFlag.Name))
							if err != nil {
								return err
							}
							for _, key := range list {
								fmt.Fprintln(cCtx.App.Writer, key)
							}
							return nil
						},
					},
					{
						Name:      "add",
						Usage:     "Add a secret",
						ArgsUsage: "<secret>",
						Action: func(cCtx *cli.Context) error {
							key := cCtx.Args().First()
							if key == "" {
								return errors.New("secret argument is required")
							}
							return updateKeys(cCtx.String(flags.KeysFileFlag.Name), func(list keys.KeyList) keys.KeyList {
								return list.Add(key)
							})
						},
					},
					{
						Name:      "remove",
						Usage:     "Revoke a secret",
						ArgsUsage: "<secret>",
						Action: func(cCtx *cli.Context) error {
							key := cCtx.Args().First()
							if key == "" {
								return errors.New("secret argument is required")
							}
							return updateKeys(cCtx.String(flags.KeysFileFlag.Name), func(list keys.KeyList) keys.KeyList {
								return list.Remove(key)
							})
						},
					},
					{
						Name:  "generate",
						Usage: "Add a new random secret and print it",
						Action: func(cCtx *cli.Context) error {
							key, err := keys.Generate()
							if err != nil {
								return err
							}
							err = updateKeys(cCtx.String(flags.KeysFileFlag.Name), func(list keys.KeyList) keys.KeyList {
								return list.Add(key)
							})
							if err != nil {
								return err
							}
							fmt.Fprintln(cCtx.App.Writer, key)
							return nil
						},
					},
				},
			},
			{
				Name:  "server",
				Usage: "Query or change the readiness of a running server",
				Flags: []cli.Flag{flagServerAddr},
				Subcommands: []*cli.Command{
					serverCommand("status", "Print the readiness status", (*clients.SignInClient).Status),
					serverCommand("drain", "Take the server out of rotation", (*clients.SignInClient).Drain),
					serverCommand("undrain", "Put the server back into rotation", (*clients.SignInClient).Undrain),
				},
			},
			{
				Name:  "attendance",
				Usage: "Inspect attendance logs",
				Subcommands: []*cli.Command{
					{
						Name:  "count",
						Usage: "Print the number of attendees for a secret",
						Flags: append([]cli.Flag{flagSecret, flags.StorageFlag}, flags.LogFlags...),
						Action: func(cCtx *cli.Context) error {
							logger := flags.SetupLogger(cCtx)
							n, err := countAttendees(cCtx.Context, storage.NewStoreFactory(logger), cCtx.StringSlice(flags.StorageFlag.Name), cCtx.String(flagSecret.Name))
							if err != nil {
								return err
							}
							fmt.Fprintln(cCtx.App.Writer, n)
							return nil
						},
					},
				},
			},
		},
	}
}

func serverCommand(name, usage string, call func(*clients.SignInClient, context.Context) (string, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(cCtx *cli.Context) error {
			client := clients.NewSignInClient(cCtx.String(flagServerAddr.Name), 10*time.Second)
			status, err := call(client, cCtx.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, status)
			return nil
		},
	}
}

// updateKeys applies fn to the key list at path. A missing file starts an
// empty list.
func updateKeys(path string, fn func(keys.KeyList) keys.KeyList) error {
	list, err := keys.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		list = keys.KeyList{}
	}
	return keys.Save(path, fn(list))
}

func countAttendees(ctx context.Context, factory interfaces.AttendanceStoreFactory, uris []string, secret string) (int, error) {
	locations := make([]interfaces.StoreLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStoreLocation(uri)
		if err != nil {
			return 0, err
		}
		locations = append(locations, location)
	}

	store, err := factory.CreateMultiStore(locations)
	if err != nil {
		return 0, err
	}

	attendance, err := store.Fetch(ctx, secret)
	if errors.Is(err, interfaces.ErrLogNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(attendance.Attendees), nil
}
