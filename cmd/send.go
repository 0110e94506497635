package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/billm/baaaht/webbridge/pkg/bridge"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/spf13/cobra"
)

var (
	sendWait    time.Duration
	sendReplies int
)

var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send a message to every page of a running host",
	Long: `send connects to a running host as the script runtime and sends the
arguments, joined by spaces, as one message. The host delivers it to the
page of every open window. With --wait, send prints messages from pages
until --replies have arrived or the wait runs out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "How long to wait for page messages")
	sendCmd.Flags().IntVar(&sendReplies, "replies", 1, "Stop waiting after this many page messages")
}

func runSend(c *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), cfg.Sender.WriteTimeout+sendWait)
	defer cancel()

	ep, err := app.DialScriptTransport(ctx, cfg.Transport, rootLog)
	if err != nil {
		return err
	}
	defer ep.Close()

	link := bridge.New(types.ChannelIPC, ep.Transport, *cfg, rootLog)

	var mu sync.Mutex
	var sendErrs []error
	link.OnError(func(se bridge.SendError) {
		mu.Lock()
		sendErrs = append(sendErrs, se)
		mu.Unlock()
	})

	replies := make(chan string, 16)
	link.OnMessage(func(msg types.Message) {
		select {
		case replies <- msg.Payload:
		default:
		}
	})

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go func() { _ = link.Run(runCtx) }()

	link.Send(strings.Join(args, " "))

	if sendWait > 0 {
		received := 0
	wait:
		for received < sendReplies {
			select {
			case payload := <-replies:
				fmt.Fprintln(c.OutOrStdout(), payload)
				received++
			case <-ctx.Done():
				break wait
			}
		}
	}

	// Close drains the queued message before the transport goes away
	stopRun()
	if err := link.Close(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sendErrs) > 0 {
		return fmt.Errorf("message not delivered: %w", errors.Join(sendErrs...))
	}
	return nil
}
