package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"carpool-service/internal/config"
	"carpool-service/pkg/logging"
)

type Options struct {
	API     string `long:"api" description:"API base URL (overrides API_URI)"`
	Verbose bool   `short:"v" long:"verbose" description:"Log requests to stderr"`

	Login      LoginCommand      `command:"login" description:"Log in and remember the session"`
	Logout     LogoutCommand     `command:"logout" description:"Forget the stored session"`
	Show       ShowCommand       `command:"show" description:"Show your profile"`
	Edit       EditCommand       `command:"edit" description:"Change name and bio"`
	Upload     UploadCommand     `command:"upload" description:"Upload a new profile picture"`
	DeleteRide DeleteRideCommand `command:"delete-ride" description:"Delete a ride you published"`
	Watch      WatchCommand      `command:"watch" description:"Print ride notifications as they arrive"`
}

var (
	opts Options
	cfg  *config.Client
)

func main() {
	cfg = config.LoadClient()

	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		level := cfg.LogLevel
		if opts.Verbose {
			level = "debug"
		}
		logging.Setup(level, "text")
		if opts.API != "" {
			cfg.APIURI = opts.API
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if _, ok := err.(*flags.Error); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
