package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	baseURL         = "http://127.0.0.1:8080"
	brokerURL       = "tcp://127.0.0.1:1883"
	topicPrefix     = "iot"
	numDevices      = 50
	firstDeviceID   = 9000
	testDuration    = 30 * time.Second
	publishInterval = 3 * time.Second
	heartbeatEvery  = 5
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	kind    string
	latency time.Duration
	err     bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== iotd Load Test ===")
	fmt.Printf("Devices: %d | Duration: %s | Interval: %s\n\n", numDevices, testDuration, publishInterval)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Registering devices (POST /api/devices) ---")
	for i := 0; i < numDevices; i++ {
		if err := registerDevice(int64(firstDeviceID + i)); err != nil {
			fmt.Printf("  device %d: %s\n", firstDeviceID+i, err)
		}
	}

	fmt.Println("\n--- Phase 2: Publishing telemetry and heartbeats ---")
	results := make(chan result, 10000)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < numDevices; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			runDevice(id, results, stop)
		}(int64(firstDeviceID + i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.kind]
			if !ok {
				s = &stats{}
				allResults[r.kind] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(testDuration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, testDuration)
	printOverview()
}

func registerDevice(id int64) error {
	body, _ := json.Marshal(map[string]interface{}{
		"id":   id,
		"name": fmt.Sprintf("loadtest-%d", id),
		"type": "sensor",
	})
	resp, err := httpClient.Post(baseURL+"/api/devices", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// runDevice simulates one device: telemetry every publishInterval, a
// heartbeat every heartbeatEvery ticks and an offline status on exit.
func runDevice(id int64, results chan<- result, stop <-chan struct{}) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("iotd-loadtest-" + uuid.NewString()).
		SetCleanSession(true).
		SetConnectTimeout(5 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		results <- result{"connect", 0, true}
		return
	}
	defer client.Disconnect(250)

	rng := rand.New(rand.NewSource(id))
	base := fmt.Sprintf("%s/device/%d/", topicPrefix, id)
	results <- publish(client, base+"status", []byte("online"), "status")

	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		select {
		case <-stop:
			results <- publish(client, base+"status", []byte("offline"), "status")
			return
		case <-ticker.C:
			payload, _ := json.Marshal(map[string]interface{}{
				"temp":      18 + rng.Float64()*15,
				"hum":       30 + rng.Float64()*40,
				"timestamp": time.Now().UnixMilli(),
				"battery":   20 + rng.Intn(80),
				"signal":    -90 + rng.Intn(50),
			})
			results <- publish(client, base+"telemetry", payload, "telemetry")
			if tick%heartbeatEvery == 0 {
				results <- publish(client, base+"heartbeat", []byte(`{"firmware":"1.0.0"}`), "heartbeat")
			}
		}
	}
}

func publish(client mqtt.Client, topic string, payload []byte, kind string) result {
	start := time.Now()
	token := client.Publish(topic, 1, false, payload)
	ok := token.WaitTimeout(5 * time.Second)
	return result{kind, time.Since(start), !ok || token.Error() != nil}
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	kinds := make([]string, 0, len(allResults))
	for k := range allResults {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Message", "Count", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, k := range kinds {
		s := allResults[k]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			k, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	if totalOps == 0 {
		return
	}
	rate := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d msgs | Errors: %d (%.1f%%) | Rate: %.0f/s\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rate)
}

func printOverview() {
	// Offline statuses are processed asynchronously.
	time.Sleep(time.Second)
	resp, err := httpClient.Get(baseURL + "/api/monitoring/overview")
	if err != nil {
		fmt.Printf("\nOverview unavailable: %s\n", err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("\nOverview: %s\n", body)
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
