// Command slotwatch follows charger and station availability events and prints them as JSON
// lines.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"evslot/backend/libs/logging"
	"evslot/backend/libs/realtime"
)

type line struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	gatewayURL := flag.String("url", "ws://localhost:8085/ws", "gateway websocket url")
	chargers := flag.String("charger", "", "comma separated charger ids to follow")
	stations := flag.String("station", "", "comma separated station ids to follow")
	token := flag.String("token", "", "optional bearer token")
	flag.Parse()

	chargerIDs := splitIDs(*chargers)
	stationIDs := splitIDs(*stations)
	if len(chargerIDs) == 0 && len(stationIDs) == 0 {
		fmt.Fprintln(os.Stderr, "slotwatch: at least one -charger or -station is required")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logging.NewLoggerTo("slotwatch", "stderr")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	target, err := withToken(*gatewayURL, *token)
	if err != nil {
		logger.Fatal("invalid url", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := realtime.New(target, realtime.Options{Logger: logger})
	for _, id := range chargerIDs {
		_ = client.SubscribeCharger(id)
	}
	for _, id := range stationIDs {
		_ = client.SubscribeStation(id)
	}

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	enc := json.NewEncoder(os.Stdout)
	for ev := range client.Events() {
		if err := enc.Encode(line{Time: time.Now().UTC(), Event: ev.Name, Data: ev.Data}); err != nil {
			logger.Error("write event", zap.Error(err))
		}
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("slotwatch stopped with error", zap.Error(err))
	}
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
