// Command chat runs the portfolio assistant in a terminal. Confirmed
// submissions are appended to a JSON file store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/kavishka-codxlab/portfolio-assistant/config"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/dispatch"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/logging"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/store"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
)

func main() {
	cfg, err := config.Load[config.ChatConfig]()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, closer := logging.New(logging.Config{Level: cfg.LogLevel}, os.Stderr)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var loader *conversation.Loader
	if cfg.CatalogDir != "" {
		loader = conversation.NewLoader(cfg.CatalogDir, logger)
		if _, err := loader.LoadAll(); err != nil {
			logger.Warn("loading catalogs, using built-in default", slog.String("error", err.Error()))
		}
	}

	sink := dispatch.New(store.NewFileStore(cfg.StoreFile), nil, logger)
	engine := conversation.NewEngine(loader.Source(cfg.CatalogName)(), sink.SubmitFor("terminal"),
		conversation.WithLogger(logger),
		conversation.WithMaxSlotRetries(cfg.MaxSlotRetries),
	)

	if err := repl(ctx, engine, os.Stdin, os.Stdout); err != nil {
		logger.Error("chat exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func repl(ctx context.Context, engine *conversation.Engine, in io.Reader, out io.Writer) error {
	menu := engine.Catalog().Menu
	fmt.Fprintln(out, "Ruby: Hi! How can I help today? (type /reset to start over, /quit to leave)")
	printReplies(out, menu)
	offered := menu

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			engine.Reset()
			fmt.Fprintln(out, "Ruby: Starting over.")
			printReplies(out, menu)
			offered = menu
			continue
		}

		// A bare number picks the matching quick reply.
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(offered) {
			line = offered[n-1]
		}

		reply := engine.ProcessUserInput(ctx, line)
		fmt.Fprintf(out, "Ruby: %s\n", reply.Response)
		printReplies(out, reply.QuickReplies)
		offered = reply.QuickReplies
	}
}

func printReplies(out io.Writer, replies []string) {
	for i, r := range replies {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, r)
	}
}
