// Simulation harness for testing Sentinel against labeled event streams.
//
// Usage:
//   go run cmd/simulate/main.go -url http://localhost:8080
//
// This tool:
//   1. Generates labeled home-security scenarios (visitors, deliveries, break-ins)
//   2. Sends each event to Sentinel for assessment
//   3. Compares Sentinel's decision (alert vs no alert) with the scenario labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// SimEvent is a labeled synthetic camera event.
type SimEvent struct {
	Scenario string
	IsThreat bool

	Timestamp   time.Time
	Zone        string
	Camera      string
	PersonTrack string

	EntryPoint   string
	RangDoorbell bool
	Knocked      bool
	DwellSeconds float64
	PublicPath   bool

	KnownFace      bool
	FaceConfidence float64

	AwayProb       float64
	ExpectedWindow bool
	Token          string
}

// EventRequest is the Sentinel API request format.
type EventRequest struct {
	Timestamp    time.Time `json:"timestamp"`
	Zone         string    `json:"zone"`
	Camera       string    `json:"camera"`
	PersonTrack  string    `json:"personTrack"`
	EntryPoint   string    `json:"entryPoint"`
	RangDoorbell bool      `json:"rangDoorbell"`
	Knocked      bool      `json:"knocked"`
	DwellSeconds float64   `json:"dwellSeconds"`
	PublicPath   bool      `json:"publicPath"`
	KnownFace    bool      `json:"knownFace"`
	FaceConf     float64   `json:"faceConfidence"`
	AwayProb     float64   `json:"awayProb"`
	ExpectedWin  bool      `json:"expectedWindow"`
	Token        string    `json:"token"`
}

// AssessResponse is the Sentinel API response format.
type AssessResponse struct {
	AssessmentID string  `json:"assessmentId"`
	Decision     string  `json:"decision"` // IGNORE, WAIT, STANDARD, ELEVATED, CRITICAL
	Probability  float64 `json:"probability"`
	Summary      string  `json:"summary"`
	RawLogit     float64 `json:"rawLogit"`
}

// OutcomeRequest feeds ground truth back into the learning loop.
type OutcomeRequest struct {
	AssessmentID string       `json:"assessmentId"`
	RawLogit     float64      `json:"rawLogit"`
	WasThreat    bool         `json:"wasThreat"`
	Event        EventRequest `json:"event"`
}

// Metrics tracks simulation results.
type Metrics struct {
	TruePositives  int64 // Threat alerted
	FalsePositives int64 // Benign alerted
	TrueNegatives  int64 // Benign not alerted
	FalseNegatives int64 // Threat not alerted (missed intrusion!)

	TotalProcessed int64
	TotalThreat    int64
	TotalBenign    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Sentinel base URL")
	homeID := flag.String("home", "simulate-test", "Home ID for requests")
	count := flag.Int("count", 1000, "Number of events to generate")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	threatRate := flag.Float64("threat-rate", 0.05, "Fraction of threat scenarios (0.0-1.0)")
	feedback := flag.Bool("feedback", false, "Post ground-truth outcomes back after each event")
	seed := flag.Int64("seed", 42, "Random seed for scenario generation")
	verbose := flag.Bool("verbose", false, "Print each event result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         SENTINEL SIMULATION - Labeled Event Replay            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nSentinel URL: %s\n", *baseURL)
	fmt.Printf("Home ID:      %s\n", *homeID)
	fmt.Printf("Events:       %d\n", *count)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Threat Rate:  %.2f\n", *threatRate)
	fmt.Printf("Feedback:     %v\n", *feedback)
	fmt.Println()

	// Check Sentinel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Sentinel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Sentinel is running:")
		fmt.Println("  go run cmd/sentinel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Sentinel is healthy")

	// Generate labeled scenarios
	fmt.Printf("\nGenerating %d labeled events...\n", *count)
	events := generateEvents(*count, *threatRate, *seed)

	threatCount := 0
	for _, ev := range events {
		if ev.IsThreat {
			threatCount++
		}
	}
	fmt.Printf("✓ Generated %d events\n", len(events))
	fmt.Printf("  - Threats: %d (%.2f%%)\n", threatCount, 100*float64(threatCount)/float64(len(events)))
	fmt.Printf("  - Benign:  %d (%.2f%%)\n", len(events)-threatCount, 100*float64(len(events)-threatCount)/float64(len(events)))

	// Run simulation
	fmt.Printf("\nRunning simulation with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runSimulation(events, *baseURL, *homeID, *workers, *feedback, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateEvents builds a mixed stream of archetypal scenarios. Each event
// gets a fresh person track so incident windows stay independent.
func generateEvents(count int, threatRate float64, seed int64) []SimEvent {
	rng := rand.New(rand.NewSource(seed))
	base := time.Now().UTC().Add(-24 * time.Hour)

	events := make([]SimEvent, 0, count)
	for i := 0; i < count; i++ {
		ts := base.Add(time.Duration(i) * 90 * time.Second)
		track := fmt.Sprintf("track-%06d", i)

		if rng.Float64() < threatRate {
			events = append(events, threatScenario(rng, ts, track))
		} else {
			events = append(events, benignScenario(rng, ts, track))
		}
	}
	return events
}

func benignScenario(rng *rand.Rand, ts time.Time, track string) SimEvent {
	// Daytime timestamps for benign traffic
	ts = atHour(ts, 9+rng.Intn(10))

	switch rng.Intn(4) {
	case 0: // Expected delivery
		return SimEvent{
			Scenario:       "delivery",
			Timestamp:      ts,
			Zone:           "front_porch",
			Camera:         "cam-door",
			PersonTrack:    track,
			EntryPoint:     "front_door",
			RangDoorbell:   true,
			DwellSeconds:   6 + rng.Float64()*10,
			PublicPath:     true,
			AwayProb:       rng.Float64() * 0.5,
			ExpectedWindow: true,
			Token:          "delivery",
		}
	case 1: // Known visitor at the door
		return SimEvent{
			Scenario:       "known_visitor",
			Timestamp:      ts,
			Zone:           "front_porch",
			Camera:         "cam-door",
			PersonTrack:    track,
			EntryPoint:     "front_door",
			RangDoorbell:   rng.Float64() < 0.7,
			Knocked:        rng.Float64() < 0.3,
			DwellSeconds:   5 + rng.Float64()*15,
			PublicPath:     true,
			KnownFace:      true,
			FaceConfidence: 0.8 + rng.Float64()*0.15,
		}
	case 2: // Guest with access token while owners away
		return SimEvent{
			Scenario:     "guest",
			Timestamp:    ts,
			Zone:         "front_porch",
			Camera:       "cam-door",
			PersonTrack:  track,
			EntryPoint:   "front_door",
			RangDoorbell: true,
			DwellSeconds: 10 + rng.Float64()*20,
			PublicPath:   true,
			AwayProb:     0.8,
			Token:        "guest",
		}
	default: // Passer-by on the public path
		return SimEvent{
			Scenario:     "passer_by",
			Timestamp:    ts,
			Zone:         "driveway",
			Camera:       "cam-drive",
			PersonTrack:  track,
			EntryPoint:   "other",
			DwellSeconds: 2 + rng.Float64()*5,
			PublicPath:   true,
		}
	}
}

func threatScenario(rng *rand.Rand, ts time.Time, track string) SimEvent {
	// Small-hours timestamps for intrusion traffic
	ts = atHour(ts, rng.Intn(4)+1)

	if rng.Float64() < 0.5 {
		// Window approach while nobody is home
		return SimEvent{
			Scenario:     "window_prowler",
			IsThreat:     true,
			Timestamp:    ts,
			Zone:         "back_yard",
			Camera:       "cam-back",
			PersonTrack:  track,
			EntryPoint:   "window",
			DwellSeconds: 30 + rng.Float64()*60,
			AwayProb:     0.85 + rng.Float64()*0.1,
		}
	}
	// Lurker at a side entrance, no announcement
	return SimEvent{
		Scenario:     "lurker",
		IsThreat:     true,
		Timestamp:    ts,
		Zone:         "side_yard",
		Camera:       "cam-side",
		PersonTrack:  track,
		EntryPoint:   "back_door",
		DwellSeconds: 45 + rng.Float64()*90,
		AwayProb:     0.7 + rng.Float64()*0.25,
	}
}

func atHour(ts time.Time, hour int) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, ts.Minute(), ts.Second(), 0, time.UTC)
}

func runSimulation(events []SimEvent, baseURL, homeID string, numWorkers int, feedback, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan SimEvent, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for ev := range work {
				start := time.Now()
				result, err := assessEvent(client, baseURL, homeID, ev)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", ev.PersonTrack, err)
					}
					continue
				}

				// Track actual labels
				if ev.IsThreat {
					atomic.AddInt64(&metrics.TotalThreat, 1)
				} else {
					atomic.AddInt64(&metrics.TotalBenign, 1)
				}

				// Calculate confusion matrix
				predicted := result.Decision == "ELEVATED" || result.Decision == "CRITICAL"
				actual := ev.IsThreat

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if feedback {
					if ferr := recordOutcome(client, baseURL, homeID, ev, result); ferr != nil && verbose {
						fmt.Printf("FEEDBACK ERROR: %s -> %v\n", ev.PersonTrack, ferr)
					}
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-14s | Zone: %-11s | Dwell: %5.1fs | Threat: %-5v | Sentinel: %-8s (%.2f)\n",
						status,
						ev.Scenario,
						ev.Zone,
						ev.DwellSeconds,
						ev.IsThreat,
						result.Decision,
						result.Probability,
					)
				}
			}
		}()
	}

	// Send work
	for _, ev := range events {
		work <- ev
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func toRequest(ev SimEvent) EventRequest {
	return EventRequest{
		Timestamp:    ev.Timestamp,
		Zone:         ev.Zone,
		Camera:       ev.Camera,
		PersonTrack:  ev.PersonTrack,
		EntryPoint:   ev.EntryPoint,
		RangDoorbell: ev.RangDoorbell,
		Knocked:      ev.Knocked,
		DwellSeconds: ev.DwellSeconds,
		PublicPath:   ev.PublicPath,
		KnownFace:    ev.KnownFace,
		FaceConf:     ev.FaceConfidence,
		AwayProb:     ev.AwayProb,
		ExpectedWin:  ev.ExpectedWindow,
		Token:        ev.Token,
	}
}

func assessEvent(client *http.Client, baseURL, homeID string, ev SimEvent) (*AssessResponse, error) {
	body, err := json.Marshal(toRequest(ev))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", homeID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func recordOutcome(client *http.Client, baseURL, homeID string, ev SimEvent, result *AssessResponse) error {
	body, err := json.Marshal(OutcomeRequest{
		AssessmentID: result.AssessmentID,
		RawLogit:     result.RawLogit,
		WasThreat:    ev.IsThreat,
		Event:        toRequest(ev),
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/outcomes", bytes.NewReader(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", homeID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      SIMULATION RESULTS                       ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Threats:    %d\n", m.TotalThreat)
	fmt.Printf("   Total Benign:     %d\n", m.TotalBenign)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   ALERT      NO ALERT")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  T  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           B  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of alerts, how many were actual threats)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of threats, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalThreat > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalThreat) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalThreat) * 100
		fmt.Printf("   Threats Detected:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalThreat, detectionRate)
		fmt.Printf("   Threats Missed:    %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalThreat, missRate)
	}
	if m.TotalBenign > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalBenign) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalBenign, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		eps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f events/sec\n", eps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most intrusions")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some intrusions")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant intrusions being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most intrusions are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
