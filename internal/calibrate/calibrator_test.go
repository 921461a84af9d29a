package calibrate

import (
	"testing"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

func testBucket() Bucket {
	return Bucket{Entry: domain.EntryBackDoor, TimeBand: BandLateNight, Away: 1}
}

func TestCalibrateColdStart(t *testing.T) {
	s := New(domain.DefaultEngineConfig())

	res := s.Calibrate(0.0, testBucket())
	if res.Learned {
		t.Error("cold start must not report learned parameters")
	}
	if res.Uncertain {
		t.Error("cold start must not be conformally uncertain")
	}
	if res.Probability != 0.5 {
		t.Errorf("zero logit at defaults should give 0.5, got %f", res.Probability)
	}
}

func TestCalibrateTemperatureSoftens(t *testing.T) {
	s := New(domain.DefaultEngineConfig())

	res := s.Calibrate(2.0, testBucket())
	naive := domain.Sigmoid(2.0)
	if res.Probability >= naive {
		t.Errorf("temperature should soften confidence: %f >= %f", res.Probability, naive)
	}
}

func TestCalibrateOddsCap(t *testing.T) {
	s := New(domain.DefaultEngineConfig())

	// 50/1.4 is far above the 3.0 odds cap.
	res := s.Calibrate(50.0, testBucket())
	max := domain.Sigmoid(3.0)
	if res.Probability > max+1e-9 {
		t.Errorf("odds cap violated: %f > %f", res.Probability, max)
	}
}

func TestCalibrateProbabilityBounds(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	for _, logit := range []float64{-1000, -5, 0, 5, 1000} {
		res := s.Calibrate(logit, b)
		if res.Probability < 0.001 || res.Probability > 0.999 {
			t.Errorf("probability out of [0.001,0.999]: logit=%f p=%f", logit, res.Probability)
		}
	}
}

func TestAddOutcomeBelowMinimumKeepsDefaults(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	for i := 0; i < 4; i++ {
		s.AddOutcome(b, 1.0, true)
	}

	res := s.Calibrate(1.0, b)
	if res.Learned {
		t.Error("fewer than 5 outcomes must keep engine defaults")
	}
}

func TestAddOutcomeLearnsCalibration(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	// High logits that were almost always threats.
	for i := 0; i < 20; i++ {
		s.AddOutcome(b, 1.5, i != 0)
	}

	res := s.Calibrate(3.0, b)
	if !res.Learned {
		t.Fatal("expected learned calibration after 20 outcomes")
	}
	if res.Probability <= 0.5 {
		t.Errorf("threat-heavy bucket should calibrate above-mean logits past 0.5, got %f", res.Probability)
	}
}

func TestConformalAbstention(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	for i := 0; i < 10; i++ {
		s.AddOutcome(b, 1.0, i%2 == 0)
	}

	// Mid-range probability: neither claim reaches 90% confidence.
	res := s.Calibrate(1.0, b)
	if res.Hint != domain.HintWait || !res.Uncertain {
		t.Errorf("ambiguous bucket should abstain: hint=%s uncertain=%v", res.Hint, res.Uncertain)
	}
}

func TestConformalConfidentClaims(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	for i := 0; i < 10; i++ {
		s.AddOutcome(b, 2.0, true)
	}

	// All threats: Platt maps the mean logit to an extreme probability.
	res := s.Calibrate(6.0, b)
	if res.Probability < 0.9 {
		t.Fatalf("expected high calibrated probability, got %f", res.Probability)
	}
	if res.Hint != domain.HintAlert || res.Uncertain {
		t.Errorf("confident threat should hint alert: hint=%s uncertain=%v", res.Hint, res.Uncertain)
	}
}

func TestHistoryCap(t *testing.T) {
	s := New(domain.DefaultEngineConfig())
	b := testBucket()

	for i := 0; i < 600; i++ {
		s.AddOutcome(b, 0.5, false)
	}
	if got := s.SampleCount(b); got != 512 {
		t.Errorf("history should cap at 512, got %d", got)
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.Event
		want Bucket
	}{
		{
			name: "weekday afternoon at home",
			ev: domain.Event{
				Timestamp:  time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), // Tuesday
				EntryPoint: domain.EntryFrontDoor,
				AwayProb:   0.1,
			},
			want: Bucket{Entry: domain.EntryFrontDoor, TimeBand: BandDay},
		},
		{
			name: "weekend late night away",
			ev: domain.Event{
				Timestamp:  time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC), // Saturday
				EntryPoint: domain.EntryBackDoor,
				AwayProb:   0.9,
			},
			want: Bucket{Entry: domain.EntryBackDoor, TimeBand: BandLateNight, DayType: 1, Away: 1},
		},
		{
			name: "weekday evening",
			ev: domain.Event{
				Timestamp:  time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC),
				EntryPoint: domain.EntryWindow,
			},
			want: Bucket{Entry: domain.EntryWindow, TimeBand: BandEvening},
		},
		{
			name: "weekday night",
			ev: domain.Event{
				Timestamp:  time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC),
				EntryPoint: domain.EntryGarage,
			},
			want: Bucket{Entry: domain.EntryGarage, TimeBand: BandNight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketFor(tt.ev); got != tt.want {
				t.Errorf("BucketFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
