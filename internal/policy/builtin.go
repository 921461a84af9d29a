package policy

import "github.com/novinai/sentinel/internal/domain"

// BuiltinPolicies returns the default global policies loaded at startup.
// Homes override or disable these via the policy API.
func BuiltinPolicies() []*domain.PolicyConfig {
	return []*domain.PolicyConfig{
		{
			ID:          "builtin-overnight-quiet",
			Name:        "Overnight quiet hours",
			Description: "Suppress low-confidence alerts between midnight and 5am for known faces at the front door",
			Expression:  `hour >= 0 && hour < 5 && known_face && probability < 0.3`,
			Action:      domain.PolicySuppress,
			Reason:      "known face during quiet hours",
			Enabled:     true,
		},
		{
			ID:          "builtin-duplicate-storm",
			Name:        "Duplicate storm awareness",
			Description: "Notify when a camera is producing heavy duplicate traffic",
			Expression:  `suppressed_count >= 10`,
			Action:      domain.PolicyNotify,
			Reason:      "camera flapping, check placement",
			Enabled:     true,
		},
		{
			ID:          "builtin-window-night",
			Name:        "Window approach at night",
			Description: "Escalate any window approach overnight while the home is away",
			Expression:  `entry_point == "window" && (hour >= 23 || hour < 5) && away_prob >= 0.7 && probability >= 0.3`,
			Action:      domain.PolicyEscalate,
			Reason:      "window approach overnight while away",
			Enabled:     true,
		},
	}
}
