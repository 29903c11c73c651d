// Command loadtest drives the relay server with simulated direct
// conversations. Each pair of clients joins a shared direct topic, one side
// publishes chat messages at a fixed rate, and the other side measures
// publish-to-receive latency from the ts field stamped into each event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/RayhaanHowlader/sociamed-sub002/loadtest/client"
	"github.com/RayhaanHowlader/sociamed-sub002/loadtest/stats"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "relay WebSocket URL")
		pairs    = flag.Int("pairs", 50, "number of concurrent conversation pairs")
		messages = flag.Int("messages", 20, "messages sent per pair")
		rate     = flag.Duration("rate", 100*time.Millisecond, "delay between messages from one sender")
		timeout  = flag.Duration("timeout", 60*time.Second, "overall test timeout")
	)
	flag.Parse()

	log.Printf("loadtest: url=%s pairs=%d messages=%d rate=%s", *url, *pairs, *messages, *rate)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	collector := stats.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runPair(ctx, *url, i, *messages, *rate, collector)
		}(i)
	}
	wg.Wait()

	collector.Report()
}

// runPair connects two clients, joins them to the same direct topic, and has
// the first send messages while the second records delivery latency.
func runPair(ctx context.Context, url string, i, messages int, rate time.Duration, collector *stats.Collector) {
	sender := fmt.Sprintf("lt-user-%04d-a", i)
	receiver := fmt.Sprintf("lt-user-%04d-b", i)

	a, err := client.New(ctx, url, sender)
	if err != nil {
		log.Printf("pair %d: sender connect: %v", i, err)
		collector.AddError()
		return
	}
	defer a.Close()
	collector.AddConnect(a.GetMetrics().ConnectLatency)

	b, err := client.New(ctx, url, receiver)
	if err != nil {
		log.Printf("pair %d: receiver connect: %v", i, err)
		collector.AddError()
		return
	}
	defer b.Close()
	collector.AddConnect(b.GetMetrics().ConnectLatency)

	received := make(chan struct{}, messages)
	b.On(client.TypeChatMessage, func(raw json.RawMessage) {
		var msg struct {
			FromID string `json:"fromId"`
			Ts     int64  `json:"ts"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil || msg.FromID == receiver {
			return
		}
		if msg.Ts > 0 {
			collector.AddDelivery(time.Since(time.Unix(0, msg.Ts)))
		}
		select {
		case received <- struct{}{}:
		default:
		}
	})

	if err := a.JoinChat(receiver); err != nil {
		collector.AddError()
		return
	}
	if err := b.JoinChat(sender); err != nil {
		collector.AddError()
		return
	}

	// Give the joins a moment to register before publishing.
	time.Sleep(200 * time.Millisecond)

	for n := 0; n < messages; n++ {
		if err := a.SendChatMessage(receiver, fmt.Sprintf("msg %d from pair %d", n, i)); err != nil {
			collector.AddError()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(rate):
		}
	}

	// Wait for the expected deliveries, bounded by the test timeout. Missing
	// deliveries are expected under saturation (drop-on-full) and show up as a
	// lower delivered count, not as errors.
	deadline := time.After(5 * time.Second)
	for n := 0; n < messages; n++ {
		select {
		case <-received:
		case <-ctx.Done():
			return
		case <-deadline:
			return
		}
	}
}
