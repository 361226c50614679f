package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/voxelgate/internal/eventbus"
	"github.com/annel0/voxelgate/internal/world"
)

const timeFormat = "15:04:05.000"

func main() {
	var (
		natsURL   = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream    = flag.String("stream", "WORLD", "JetStream stream name")
		command   = flag.String("cmd", "tail", "Command: tail, stats")
		sources   = flag.String("sources", "", "Source server IDs filter (comma-separated)")
		kinds     = flag.String("kinds", "", "Change kinds filter: block,entity,entity_removed,player,player_removed")
		limit     = flag.Int("limit", 0, "Stop after N events (0 — until interrupted)")
		window    = flag.Duration("window", 10*time.Second, "Stats window for -cmd stats")
		retention = flag.Duration("retention", time.Hour, "Stream retention if the stream has to be created")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, *retention)
	if err != nil {
		log.Fatalf("❌ Failed to connect to %s: %v", *natsURL, err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := &TailOptions{
		Sources: parseStringList(*sources),
		Kinds:   parseStringList(*kinds),
		Limit:   *limit,
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(ctx, bus, opts, *window); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

type TailOptions struct {
	Sources []string
	Kinds   []string
	Limit   int
}

// match проверяет фильтр по виду изменения; источники фильтрует шина.
func (o *TailOptions) match(ch world.Change) bool {
	if len(o.Kinds) == 0 {
		return true
	}
	for _, k := range o.Kinds {
		if k == ch.Kind.String() {
			return true
		}
	}
	return false
}

func (o *TailOptions) filter() eventbus.Filter {
	return eventbus.Filter{Types: []string{world.EventWorldChanged}, Sources: o.Sources}
}

// tailEvents выводит изменения мира по мере поступления.
func tailEvents(ctx context.Context, bus eventbus.EventBus, opts *TailOptions) error {
	fmt.Printf("🎬 Tailing %s (limit: %d)\n", world.EventWorldChanged, opts.Limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := bus.Subscribe(ctx, opts.filter(), func(_ context.Context, ev *eventbus.Envelope) {
		ch, err := world.DecodeChange(ev.Payload)
		if err != nil {
			fmt.Printf("⚠️ %s: bad payload: %v\n", ev.ID, err)
			return
		}
		if !opts.match(ch) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Println(formatChange(ev, ch))
		count++
		if opts.Limit > 0 && count >= opts.Limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats считает изменения по видам за окно.
func showStats(ctx context.Context, bus eventbus.EventBus, opts *TailOptions, window time.Duration) error {
	fmt.Printf("📊 Collecting %s for %s\n", world.EventWorldChanged, window)

	var (
		mu        sync.Mutex
		byKind    = make(map[string]int)
		bySource  = make(map[string]int)
		undecoded int
	)
	sub, err := bus.Subscribe(ctx, opts.filter(), func(_ context.Context, ev *eventbus.Envelope) {
		ch, err := world.DecodeChange(ev.Payload)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			undecoded++
			return
		}
		if !opts.match(ch) {
			return
		}
		byKind[ch.Kind.String()]++
		bySource[ev.Source]++
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Println("\nBy kind:")
	for kind, n := range byKind {
		fmt.Printf("  %s: %d\n", kind, n)
	}
	fmt.Println("By source:")
	for src, n := range bySource {
		fmt.Printf("  %s: %d\n", src, n)
	}
	if undecoded > 0 {
		fmt.Printf("Undecoded: %d\n", undecoded)
	}
	return nil
}

// formatChange выводит изменение в читаемом формате
func formatChange(ev *eventbus.Envelope, ch world.Change) string {
	head := fmt.Sprintf("[%s] %s #%d [%s]", ev.Timestamp.Local().Format(timeFormat), ev.Source, ch.Seq, ch.Kind)
	switch ch.Kind {
	case world.ChangeBlock:
		return fmt.Sprintf("%s (%d,%d,%d) → %d", head, ch.Block.X, ch.Block.Y, ch.Block.Z, ch.State)
	case world.ChangeEntity, world.ChangeEntityRemoved, world.ChangePlayer, world.ChangePlayerRemoved:
		return fmt.Sprintf("%s %s", head, ch.Subject)
	}
	return head
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
