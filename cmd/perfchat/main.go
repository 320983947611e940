// perfchat replays chat turns against a running server over the streaming
// websocket and reports first-delta and turn latencies.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sahaleey/abhachat/internal/protocol"
)

var defaultUtterances = []string{
	"what is abha",
	"who are you",
	"anything special today?",
	"tell me about the union's arts fest",
	"what events do you run",
	"how can I join a wing",
}

type options struct {
	baseURL        string
	sessionID      string
	texts          []string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	verbose        bool
}

type turnResult struct {
	firstDelta time.Duration
	total      time.Duration
	source     string
	failed     string
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfchat: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfchat: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var (
		cfg           options
		textsRaw      string
		interTurnMS   int
		turnTimeoutMS int
	)
	fs := flag.NewFlagSet("perfchat", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "chat server base URL")
	fs.StringVar(&cfg.sessionID, "session-id", "", "session id (random when empty)")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	fs.IntVar(&turnTimeoutMS, "turn-timeout-ms", 60000, "timeout waiting for assistant_turn_end per turn in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if strings.TrimSpace(cfg.sessionID) == "" {
		cfg.sessionID = "perf-" + uuid.NewString()
	}
	cfg.interTurnDelay = time.Duration(max(interTurnMS, 0)) * time.Millisecond
	cfg.turnTimeout = time.Duration(max(turnTimeoutMS, 1000)) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	wsURL, err := wsURLForSession(cfg.baseURL, cfg.sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if cfg.verbose {
		fmt.Printf("perfchat: session=%s turns=%d\n", cfg.sessionID, cfg.turns)
	}

	results := make([]turnResult, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		res, err := replayTurn(conn, text, cfg.turnTimeout)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		results = append(results, res)
		if cfg.verbose {
			fmt.Printf("perfchat: turn %d/%d text=%q source=%s first_delta=%s total=%s %s\n",
				i+1, cfg.turns, text, res.source, res.firstDelta.Round(time.Millisecond), res.total.Round(time.Millisecond), res.failed)
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	fmt.Println(summarize(results))

	stages, err := fetchStageSnapshot(ctx, cfg.baseURL)
	if err != nil {
		return fmt.Errorf("fetch server latency: %w", err)
	}
	fmt.Printf("perfchat: server stages %s\n", stages)
	return nil
}

// replayTurn sends one chat_message and reads frames until the turn ends.
func replayTurn(conn *websocket.Conn, text string, timeout time.Duration) (turnResult, error) {
	start := time.Now()
	_ = conn.SetWriteDeadline(start.Add(10 * time.Second))
	if err := conn.WriteJSON(protocol.ChatMessage{Type: protocol.TypeChatMessage, Message: text}); err != nil {
		return turnResult{}, fmt.Errorf("send chat_message: %w", err)
	}

	var res turnResult
	_ = conn.SetReadDeadline(start.Add(timeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return turnResult{}, fmt.Errorf("await assistant_turn_end: %w", err)
		}
		var env struct {
			Type   protocol.MessageType `json:"type"`
			Source string               `json:"source"`
			Code   string               `json:"code"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeAssistantTextDelta:
			if res.firstDelta == 0 {
				res.firstDelta = time.Since(start)
			}
		case protocol.TypeAssistantTurnEnd:
			res.total = time.Since(start)
			res.source = env.Source
			return res, nil
		case protocol.TypeErrorEvent:
			res.total = time.Since(start)
			res.failed = "error=" + env.Code
			return res, nil
		}
	}
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/chat/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func summarize(results []turnResult) string {
	var first, total []float64
	failures := 0
	for _, r := range results {
		if r.failed != "" {
			failures++
			continue
		}
		total = append(total, float64(r.total.Milliseconds()))
		if r.firstDelta > 0 {
			first = append(first, float64(r.firstDelta.Milliseconds()))
		}
	}
	return fmt.Sprintf("perfchat: turns=%d failures=%d first_delta_ms p50=%.0f p95=%.0f total_ms p50=%.0f p95=%.0f",
		len(results), failures, percentile(first, 0.50), percentile(first, 0.95), percentile(total, 0.50), percentile(total, 0.95))
}

// percentile uses nearest-rank on a sorted copy.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[min(max(rank, 0), len(sorted)-1)]
}

func fetchStageSnapshot(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return "", err
	}
	res, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", res.StatusCode)
	}
	var snap struct {
		Stages []struct {
			Stage string  `json:"stage"`
			P50MS float64 `json:"p50_ms"`
			P95MS float64 `json:"p95_ms"`
		} `json:"stages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(snap.Stages))
	for _, s := range snap.Stages {
		parts = append(parts, fmt.Sprintf("%s(p50=%.1fms p95=%.1fms)", s.Stage, s.P50MS, s.P95MS))
	}
	return strings.Join(parts, " "), nil
}
