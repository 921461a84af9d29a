//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Sentinel decision engine.
//
// These tests verify the COMPLETE assessment pipeline:
//
//	Event → Evidence → Incident → Fusion → Calibration → Decision → Policies
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. EVENT: A single camera observation of a person (zone, entry point,
//    doorbell, dwell time, face recognition, presence signals).
//
// 2. INCIDENT: A rolling window that groups events by (home, person track).
//    Near-instant repeats from the same camera are suppressed as duplicates.
//
// 3. EVIDENCE: Per-channel log-likelihood ratios (time, entry, behavior,
//    identity, presence, token). Positive pushes toward threat, negative
//    toward benign.
//
// 4. DECISION: The calibrated probability is mapped to one of:
//    IGNORE, WAIT, STANDARD, ELEVATED, CRITICAL. ELEVATED and CRITICAL
//    produce alerts.
//
// 5. POLICY: Per-home CEL expressions that can suppress, escalate, or tag
//    a decision after the probabilistic core has run.
//
// NOTE: A freshly started engine is cold: the calibrator has no outcome
// history, so absolute probabilities are driven by the defaults. Tests
// therefore compare scenarios against each other rather than pinning
// exact probabilities.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
	HomeID  string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("SENTINEL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL: baseURL,
		HomeID:  "test-home",
	}
}

// ============================================================================
// API Request/Response Types (matching Sentinel's API contract)
// ============================================================================

// EventRequest is the camera event sent to POST /events
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

// AssessResponse is what POST /events returns
type AssessResponse struct {
	AssessmentID string           `json:"assessmentId"`
	IncidentID   uint64           `json:"incidentId"`
	EventID      string           `json:"eventId"`
	Decision     string           `json:"decision"` // IGNORE/WAIT/STANDARD/ELEVATED/CRITICAL
	Probability  float64          `json:"probability"`
	Hint         string           `json:"hint"`
	Summary      string           `json:"summary"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TraceID  string `json:"traceId"`
	IngestMs int64  `json:"ingestMs"`
	TotalMs  int64  `json:"totalMs"`
	Version  string `json:"version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func assess(t *testing.T, config TestConfig, req EventRequest) AssessResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/events", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", config.HomeID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result AssessResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func validDecision(d string) bool {
	switch d {
	case "IGNORE", "WAIT", "STANDARD", "ELEVATED", "CRITICAL":
		return true
	}
	return false
}

// ============================================================================
// SCENARIO 1: Known Visitor at the Front Door (Benign)
// ============================================================================

func TestKnownVisitor_LowRisk(t *testing.T) {
	/*
	   SCENARIO: A recognized face rings the doorbell at 2 PM, short dwell
	   on the public approach path.

	   EXPECTED BEHAVIOR:
	   - Identity channel: strong negative LLR (known face, high confidence)
	   - Behavior channel: doorbell ring is benign (-1.2 structural LLR)
	   - Approach channel: public path is benign (-0.6)
	   - Presence: owners likely home, so away evidence near zero

	   FINAL DECISION: should never be CRITICAL for this profile.
	*/
	config := getTestConfig()

	req := EventRequest{
		Timestamp:    time.Now().UTC(),
		Zone:         "front_porch",
		Camera:       "cam-door",
		PersonTrack:  fmt.Sprintf("visitor-%d", time.Now().UnixNano()),
		EntryPoint:   "front_door",
		RangDoorbell: true,
		DwellSeconds: 8,
		PublicPath:   true,
		KnownFace:    true,
		FaceConf:     0.92,
	}

	result := assess(t, config, req)

	if !validDecision(result.Decision) {
		t.Errorf("Invalid decision: %s", result.Decision)
	}
	if result.Decision == "CRITICAL" {
		t.Errorf("Known doorbell visitor should not be CRITICAL, got %s (p=%.3f)",
			result.Decision, result.Probability)
	}
	if result.Probability < 0 || result.Probability > 1 {
		t.Errorf("Probability out of range: %.3f", result.Probability)
	}

	t.Logf("✓ Known visitor: decision=%s, p=%.3f", result.Decision, result.Probability)
}

// ============================================================================
// SCENARIO 2: Night Prowler at a Window (Threat)
// ============================================================================

func TestNightWindowProwler_HigherRiskThanVisitor(t *testing.T) {
	/*
	   SCENARIO: Unknown person at a window at 2:30 AM, 40 second dwell,
	   owners almost certainly away. No doorbell, no knock, off the public
	   path.

	   EXPECTED BEHAVIOR:
	   - Behavior channel: lurk evidence (+0.9 at >= 25s dwell)
	   - Presence channel: away-unexpected (+0.7)
	   - No benign structural signals to offset

	   The absolute probability depends on calibration state, so this test
	   asserts the ORDERING: the prowler must score strictly above a benign
	   daytime visitor assessed by the same engine.
	*/
	config := getTestConfig()

	now := time.Now().UTC()
	night := time.Date(now.Year(), now.Month(), now.Day(), 2, 30, 0, 0, time.UTC)
	day := time.Date(now.Year(), now.Month(), now.Day(), 14, 0, 0, 0, time.UTC)

	visitor := assess(t, config, EventRequest{
		Timestamp:    day,
		Zone:         "front_porch",
		Camera:       "cam-door",
		PersonTrack:  fmt.Sprintf("day-%d", now.UnixNano()),
		EntryPoint:   "front_door",
		RangDoorbell: true,
		DwellSeconds: 8,
		PublicPath:   true,
		KnownFace:    true,
		FaceConf:     0.9,
	})

	prowler := assess(t, config, EventRequest{
		Timestamp:    night,
		Zone:         "back_yard",
		Camera:       "cam-back",
		PersonTrack:  fmt.Sprintf("night-%d", now.UnixNano()),
		EntryPoint:   "window",
		DwellSeconds: 40,
		AwayProb:     0.95,
	})

	if prowler.Probability <= visitor.Probability {
		t.Errorf("Window prowler (p=%.3f) should outscore known visitor (p=%.3f)",
			prowler.Probability, visitor.Probability)
	}

	t.Logf("✓ Ordering holds: prowler p=%.3f (%s) > visitor p=%.3f (%s)",
		prowler.Probability, prowler.Decision, visitor.Probability, visitor.Decision)
}

// ============================================================================
// SCENARIO 3: Incident Windowing Across Cameras
// ============================================================================

func TestSameTrack_SharesIncident(t *testing.T) {
	/*
	   SCENARIO: The same person track is seen on two cameras 10 seconds
	   apart. Both events must fold into one incident window.
	*/
	config := getTestConfig()

	track := fmt.Sprintf("walker-%d", time.Now().UnixNano())
	base := time.Now().UTC()

	first := assess(t, config, EventRequest{
		Timestamp:    base,
		Zone:         "driveway",
		Camera:       "cam-drive",
		PersonTrack:  track,
		EntryPoint:   "other",
		DwellSeconds: 4,
		PublicPath:   true,
	})

	second := assess(t, config, EventRequest{
		Timestamp:    base.Add(10 * time.Second),
		Zone:         "front_porch",
		Camera:       "cam-door",
		PersonTrack:  track,
		EntryPoint:   "front_door",
		DwellSeconds: 6,
		PublicPath:   true,
	})

	if first.IncidentID != second.IncidentID {
		t.Errorf("Expected same incident for one track, got %d and %d",
			first.IncidentID, second.IncidentID)
	}
	if first.AssessmentID == second.AssessmentID {
		t.Error("Each event should produce its own assessment")
	}

	t.Logf("✓ Windowing: incident %d shared across 2 cameras", first.IncidentID)
}

// ============================================================================
// SCENARIO 4: Expected Delivery While Away (Token Evidence)
// ============================================================================

func TestExpectedDelivery_TokenOffsetsAway(t *testing.T) {
	/*
	   SCENARIO: Owners are away, but a delivery was scheduled and the
	   courier presents a delivery token at the front door.

	   EXPECTED BEHAVIOR:
	   - Token channel: delivery token is strongly benign (-2.2)
	   - Expected window: -2.0 structural evidence
	   - These offset the away-presence signal

	   The delivery must score below an identical arrival with no token
	   and no expected window.
	*/
	config := getTestConfig()

	now := time.Now().UTC()
	base := EventRequest{
		Timestamp:    now,
		Zone:         "front_porch",
		Camera:       "cam-door",
		EntryPoint:   "front_door",
		RangDoorbell: true,
		DwellSeconds: 10,
		PublicPath:   true,
		AwayProb:     0.85,
	}

	delivery := base
	delivery.PersonTrack = fmt.Sprintf("courier-%d", now.UnixNano())
	delivery.ExpectedWin = true
	delivery.Token = "delivery"

	stranger := base
	stranger.PersonTrack = fmt.Sprintf("stranger-%d", now.UnixNano())

	deliveryRes := assess(t, config, delivery)
	strangerRes := assess(t, config, stranger)

	if deliveryRes.Probability >= strangerRes.Probability {
		t.Errorf("Expected delivery (p=%.3f) should score below unexpected stranger (p=%.3f)",
			deliveryRes.Probability, strangerRes.Probability)
	}

	t.Logf("✓ Token evidence: delivery p=%.3f < stranger p=%.3f",
		deliveryRes.Probability, strangerRes.Probability)
}

// ============================================================================
// SCENARIO 5: Input Validation
// ============================================================================

func TestMissingCamera_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing required camera field

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	req := EventRequest{
		Timestamp:   time.Now().UTC(),
		Zone:        "front_porch",
		PersonTrack: "track-001",
		EntryPoint:  "front_door",
	}

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/events", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", config.HomeID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing camera, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing camera → HTTP %d", resp.StatusCode)
}

func TestMissingHomeHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Home-ID header

	   EXPECTED: HTTP 400 Bad Request. Home ID is validated as a required
	   field, not as auth.
	*/
	config := getTestConfig()

	req := EventRequest{
		Timestamp:   time.Now().UTC(),
		Zone:        "front_porch",
		Camera:      "cam-door",
		PersonTrack: "track-001",
		EntryPoint:  "front_door",
	}

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/events", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Home-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing home, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing home → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 6: Ground-Truth Feedback Loop
// ============================================================================

func TestOutcomeFeedback_Accepted(t *testing.T) {
	/*
	   SCENARIO: After an assessment, the homeowner confirms the person was
	   not a threat. The outcome feeds the calibrator and the context
	   histograms.

	   EXPECTED: HTTP 201 with the persisted outcome record.
	*/
	config := getTestConfig()

	ev := EventRequest{
		Timestamp:    time.Now().UTC(),
		Zone:         "front_porch",
		Camera:       "cam-door",
		PersonTrack:  fmt.Sprintf("feedback-%d", time.Now().UnixNano()),
		EntryPoint:   "front_door",
		RangDoorbell: true,
		DwellSeconds: 8,
		PublicPath:   true,
	}

	result := assess(t, config, ev)

	outcome := map[string]any{
		"assessmentId": result.AssessmentID,
		"rawLogit":     -2.0,
		"wasThreat":    false,
		"event":        ev,
	}

	body, _ := json.Marshal(outcome)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/outcomes", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", config.HomeID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		t.Errorf("Expected 201 for outcome, got %d: %s", resp.StatusCode, string(respBody))
	}

	t.Logf("✓ Outcome accepted for assessment %s", result.AssessmentID)
}

// ============================================================================
// SCENARIO 7: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := EventRequest{
		Timestamp:    time.Now().UTC(),
		Zone:         "front_porch",
		Camera:       "cam-door",
		PersonTrack:  fmt.Sprintf("meta-%d", time.Now().UnixNano()),
		EntryPoint:   "front_door",
		RangDoorbell: true,
		DwellSeconds: 5,
		PublicPath:   true,
	}

	result := assess(t, config, req)

	// Verify all required fields are present
	if result.AssessmentID == "" {
		t.Error("Missing assessmentId")
	}

	if result.EventID == "" {
		t.Error("Missing eventId")
	}

	if result.IncidentID == 0 {
		t.Error("Missing incidentId")
	}

	if !validDecision(result.Decision) {
		t.Errorf("Invalid decision: %s", result.Decision)
	}

	if result.Probability < 0 || result.Probability > 1 {
		t.Errorf("Probability out of range: %.3f (expected 0-1)", result.Probability)
	}

	if result.Summary == "" {
		t.Error("Missing summary")
	}

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}

	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	t.Logf("✓ Metadata complete: assessId=%s, eventId=%s, traceId=%s, totalMs=%d",
		result.AssessmentID[:8], result.EventID[:8], result.Metadata.TraceID[:8], result.Metadata.TotalMs)
}

// ============================================================================
// SCENARIO 8: Policy Lifecycle
// ============================================================================

func TestPolicyLifecycle(t *testing.T) {
	/*
	   SCENARIO: Create a notify policy, hot-reload it into the engine,
	   confirm it is listed, then delete it.
	*/
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	policyID := fmt.Sprintf("it-policy-%d", time.Now().UnixNano())
	create := map[string]any{
		"id":         policyID,
		"name":       "Integration notify",
		"expression": "probability > 0.99",
		"action":     "notify",
		"enabled":    true,
	}

	// Create
	body, _ := json.Marshal(create)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/policies", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Home-ID", config.HomeID)
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Create request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating policy, got %d", resp.StatusCode)
	}

	// Reload
	httpReq, _ = http.NewRequest("POST", config.BaseURL+"/policies/reload", nil)
	httpReq.Header.Set("X-Home-ID", config.HomeID)
	resp, err = client.Do(httpReq)
	if err != nil {
		t.Fatalf("Reload request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 reloading policies, got %d", resp.StatusCode)
	}

	// Confirm listed
	httpReq, _ = http.NewRequest("GET", config.BaseURL+"/policies/"+policyID, nil)
	httpReq.Header.Set("X-Home-ID", config.HomeID)
	resp, err = client.Do(httpReq)
	if err != nil {
		t.Fatalf("Get request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 fetching loaded policy, got %d", resp.StatusCode)
	}

	// Delete
	httpReq, _ = http.NewRequest("DELETE", config.BaseURL+"/policies/"+policyID, nil)
	httpReq.Header.Set("X-Home-ID", config.HomeID)
	resp, err = client.Do(httpReq)
	if err != nil {
		t.Fatalf("Delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 deleting policy, got %d", resp.StatusCode)
	}

	t.Logf("✓ Policy lifecycle complete for %s", policyID)
}
