// nilo CLI - a minimal bot client for the nilo.chat socket transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/super3/nilo.chat-sub000/clients/go/nilo"
	"github.com/super3/nilo.chat-sub000/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Load()

	socketURL := os.Getenv("NILO_URL")
	if socketURL == "" {
		// BASE_URL is the http(s) endpoint; the socket lives at /ws.
		socketURL = strings.Replace(cfg.BaseURL, "http", "ws", 1) + "/ws"
	}
	username := os.Getenv("NILO_USERNAME")
	if username == "" {
		username = cfg.BotUsername
	}

	channelName := "general"
	if len(os.Args) > 2 {
		channelName = os.Args[2]
	}

	client := nilo.NewClient(socketURL, username)
	tracker := nilo.NewUnreadTracker(channelName)

	client.OnHistory(func(ch string, messages []nilo.Message) {
		for _, msg := range messages {
			fmt.Println(msg.Line())
		}
	})
	client.OnMessage(func(msg nilo.Message) {
		tracker.Observe(msg)
		if msg.Channel == tracker.Active() {
			fmt.Println(msg.Line())
		}
	})
	client.OnError(func(err error) {
		fmt.Fprintln(os.Stderr, "error:", err)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Connect(ctx, channelName); err != nil {
		exitOnError(err)
	}
	defer client.Close()

	switch os.Args[1] {
	case "watch":
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: nilo send <channel> <text>")
			os.Exit(1)
		}
		exitOnError(client.SendMessage(os.Args[2], os.Args[3]))
		// Give the write a moment to flush before closing.
		time.Sleep(500 * time.Millisecond)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: nilo <command> [args]

Commands:
  watch [channel]        Stream a channel (history, then live messages)
  send <channel> <text>  Send a single message

Environment:
  NILO_URL       Socket endpoint (default derived from BASE_URL)
  NILO_USERNAME  Bot identity (default BOT_USERNAME)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
