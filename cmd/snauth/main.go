package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/signauth/internal/app"
)

const usage = `usage: snauth [-config path] <command> [flags]

commands:
  login     -email addr [-password pw]   log in and print the credential
  check     -credential file             validate a stored credential, refreshing it if needed
  refresh   -credential file             exchange the refresh token for a new credential
  register  -email addr [-password pw]   create a user and print its id

The password may also be given through SNAUTH_PASSWORD. A credential file of "-"
is read from stdin. Results are printed to stdout as JSON.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "snauth: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("snauth", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	configPath := global.String("config", app.DefaultConfigPath(), "path to the TOML config file")
	versionFlag := global.Bool("version", false, "print version and exit")
	if err := global.Parse(args); err != nil {
		return err
	}

	if *versionFlag {
		fmt.Fprintln(stdout, "snauth", app.BuildVersion)
		return nil
	}

	if global.NArg() == 0 {
		global.Usage()
		return flag.ErrHelp
	}
	command, rest := global.Arg(0), global.Args()[1:]

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	switch command {
	case "login", "register":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		email := fs.String("email", "", "user email")
		password := fs.String("password", os.Getenv("SNAUTH_PASSWORD"), "user password")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return fmt.Errorf("%s: -email and -password are required", command)
		}

		if command == "login" {
			return application.Login(ctx, *email, *password, stdout)
		}
		return application.Register(ctx, *email, *password, stdout)

	case "check", "refresh":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		credPath := fs.String("credential", "", `credential JSON file, "-" for stdin`)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *credPath == "" {
			return fmt.Errorf("%s: -credential is required", command)
		}

		cred, err := app.LoadCredential(*credPath)
		if err != nil {
			return err
		}

		if command == "check" {
			return application.Check(ctx, cred, stdout)
		}
		return application.Refresh(ctx, cred, stdout)

	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
