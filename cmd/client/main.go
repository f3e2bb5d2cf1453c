// Command client exercises a streamcast server: it can act as the sole
// broadcaster on a channel, as a single listener, or spawn a configurable
// number of concurrent listeners against one channel to drive fan-out,
// ordering and backpressure behavior.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	mode     = flag.String("mode", "listener", "broadcaster | listener | multi")
	baseURL  = flag.String("url", "ws://localhost:8080", "server base URL")
	channel  = flag.String("channel", "default", "channel to join")
	bots     = flag.Int("bots", 3, "listener count in multi mode")
	rateCap  = flag.Float64("rate", 5, "messages (broadcaster) or joins (multi) per second")
	react    = flag.Bool("react", true, "listeners reply with a canned reaction")
	lifetime = flag.Duration("lifetime", 0, "disconnect after this long (0 = run until interrupted)")
)

const heartbeatInterval = 30 * time.Second

type frame struct {
	Type       string         `json:"type,omitempty"`
	Content    string         `json:"content,omitempty"`
	Message    string         `json:"message,omitempty"`
	Event      string         `json:"event,omitempty"`
	Count      int            `json:"count,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	BotInfo    map[string]any `json:"bot_info,omitempty"`
	StreamInfo map[string]any `json:"stream_info,omitempty"`
	Timestamp  float64        `json:"timestamp,omitempty"`
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *lifetime > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *lifetime)
		defer tcancel()
	}

	var err error
	switch *mode {
	case "broadcaster":
		err = runBroadcaster(ctx)
	case "listener":
		err = runListener(ctx, 0)
	case "multi":
		err = runMulti(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func endpoint(role string) string {
	return fmt.Sprintf("%s/channels/%s/%s", *baseURL, *channel, role)
}

func dial(ctx context.Context, role string) (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint(role), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint(role), err)
	}
	return ws, nil
}

// runBroadcaster reads lines from stdin and streams them as content frames,
// printing feedback (reactions, viewer updates) as it arrives.
func runBroadcaster(ctx context.Context) error {
	ws, err := dial(ctx, "broadcaster")
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Printf("connected as broadcaster on %q; type lines to stream, Ctrl-D to stop\n", *channel)

	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	// Feedback receiver.
	go func() {
		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			switch f.Type {
			case "bot_reaction":
				fmt.Printf("<- reaction: %s\n", f.Content)
			case "viewer_update":
				fmt.Printf("<- viewers: %d (%s)\n", f.Count, f.Event)
			default:
				fmt.Printf("<- %s: %s\n", f.Type, f.Message)
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(*rateCap), 1)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		out := frame{
			Content: scanner.Text(),
			Metadata: map[string]any{
				"broadcaster_id": "test-broadcaster",
				"timestamp":      float64(time.Now().UnixNano()) / 1e9,
			},
		}
		if err := ws.WriteJSON(out); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}

// runListener joins the channel, prints stream content, heartbeats its bot
// profile and optionally replies with a canned reaction.
func runListener(ctx context.Context, index int) error {
	ws, err := dial(ctx, "listener")
	if err != nil {
		return err
	}
	defer ws.Close()

	profile := botProfile(index)
	name := profile["name"]
	fmt.Printf("[%s] connected as listener on %q\n", name, *channel)

	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	// gorilla connections allow one concurrent writer; the heartbeat
	// ticker and the reaction path share this lock.
	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(v)
	}

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writeJSON(frame{Type: "heartbeat", BotInfo: profile}); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var f frame
		if err := ws.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch f.Type {
		case "stream_content":
			fmt.Printf("[%s] stream: %s\n", name, f.Content)
			if *react {
				reaction := frame{
					Type:    "reaction",
					Content: cannedReactions[rand.Intn(len(cannedReactions))],
					BotInfo: profile,
				}
				if err := writeJSON(reaction); err != nil {
					return fmt.Errorf("react: %w", err)
				}
			}
		case "stream_info":
			fmt.Printf("[%s] joined live stream\n", name)
		}
	}
}

// runMulti spawns -bots listener sessions, pacing the joins.
func runMulti(ctx context.Context) error {
	fmt.Printf("spawning %d listeners against %q\n", *bots, *channel)

	limiter := rate.NewLimiter(rate.Limit(*rateCap), 1)
	eg, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *bots; i++ {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		i := i
		eg.Go(func() error {
			return runListener(gctx, i)
		})
	}
	return eg.Wait()
}

var personalities = []string{"enthusiastic", "critical", "curious", "chill"}

var cannedReactions = []string{
	"nice!",
	"interesting, tell us more",
	"what happens next?",
	"lol",
	"been waiting for this one",
}

func botProfile(index int) map[string]any {
	id := uuid.NewString()
	return map[string]any{
		"id":               id,
		"name":             fmt.Sprintf("bot-%d-%s", index, id[:6]),
		"personality_type": personalities[index%len(personalities)],
		"emoji_usage":      "low",
	}
}
