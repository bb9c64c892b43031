package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/pion/logging"

	"github.com/mpromonet/go-whep-play/internal/config"
	"github.com/mpromonet/go-whep-play/internal/engine"
	"github.com/mpromonet/go-whep-play/internal/session"
	"github.com/mpromonet/go-whep-play/internal/sink"
	"github.com/mpromonet/go-whep-play/internal/whep"
)

const helpText = `whepplay - Play a WHEP stream over WebRTC

Usage:
  whepplay [options] [url]

Negotiates a WebRTC session with a WHEP endpoint and writes the raw H264
video stream to stdout. Pipe to ffplay or ffmpeg for playback or
recording. The session reconnects with backoff when it drops and is torn
down cleanly with a DELETE on exit.

The endpoint URL is taken from the command line, or from WHEP_URL when
omitted.

Environment Variables:
  WHEP_URL              WHEP endpoint URL
  WHEP_TOKEN            Bearer token for the endpoint
  WHEP_ICE_SERVERS      Comma separated STUN/TURN URLs
  WHEP_ICE_USERNAME     Username for TURN servers
  WHEP_ICE_CREDENTIAL   Credential for TURN servers
  WHEP_MAX_RETRIES      Reconnect attempts before giving up (default 5)
  WHEP_BACKOFF_BASE     First reconnect delay (default 500ms)
  WHEP_BACKOFF_CAP      Upper bound on reconnect delay (default 30s)
  WHEP_CONNECTED_RESET  Connected time that refills the retry budget (default 30s)
  WHEP_REQUEST_TIMEOUT  Timeout per signaling request (default 10s)

Examples:
  # Live playback
  whepplay https://example.net/whep/live | ffplay -f h264 -

  # Record to MP4
  whepplay https://example.net/whep/live | ffmpeg -f h264 -i - -c copy output.mp4

Options:
  -h, --help  Show this help message
`

func main() {
	url := ""
	if len(os.Args) > 1 {
		if os.Args[1] == "-h" || os.Args[1] == "--help" {
			fmt.Print(helpText)
			os.Exit(0)
		}
		url = os.Args[1]
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load(url)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if loggerFactory.DefaultLogLevel < logging.LogLevelInfo {
		loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	client, err := whep.NewClient(whep.Config{
		Endpoint:      cfg.URL,
		Token:         cfg.Token,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	player := session.New(session.Config{
		ICEServers:     cfg.ICEServers,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		ConnectedReset: cfg.ConnectedReset,
		RequestTimeout: cfg.RequestTimeout,
		LoggerFactory:  loggerFactory,
	},
		client,
		&engine.Factory{LoggerFactory: loggerFactory},
		sink.NewWriter(sink.Config{Output: os.Stdout, LoggerFactory: loggerFactory}),
	)

	log.Printf("[main] playing %s", cfg.URL)
	if err := player.Run(ctx); err != nil {
		log.Fatalf("[main] %v", err)
	}
	log.Printf("[main] done")
}
