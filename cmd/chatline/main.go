package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatline/internal/client"
	"chatline/internal/config"
	"chatline/internal/constants"
)

func main() {
	flag.Usage = func() {
		fmt.Println()
		fmt.Printf("  %s%schatline%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
		fmt.Println()
		fmt.Println("  " + constants.MsgUsage)
		fmt.Println("  " + constants.MsgExample)
		fmt.Println()
		fmt.Printf("  %sFlags:%s\n", constants.ColorBold, constants.ColorReset)
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("    -%-12s %s\n", f.Name, f.Usage)
		})
		fmt.Println()
	}

	versionFlag := flag.Bool("version", false, "show version")
	apiURL := flag.String("api", "", "API base URL (overrides CHAT_API_URL)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("  %s%schatline%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
		os.Exit(0)
	}

	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", constants.ColorRed, err, constants.ColorReset)
		os.Exit(client.ExitUsage)
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%sError: %v%s\n", constants.ColorRed, err, constants.ColorReset)
			os.Exit(client.ExitUsage)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := client.New(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", constants.ColorRed, err, constants.ColorReset)
		os.Exit(client.ExitFailed)
	}

	code := app.Run(ctx, flag.Args())
	app.Close()
	stop()
	os.Exit(code)
}
