package domain

// Environment identifies which marketplace endpoint a command runs against
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// Environments lists every supported environment
var Environments = []Environment{EnvironmentProduction, EnvironmentSandbox}

func (e Environment) String() string { return string(e) }

// IsValid reports whether e is a known environment
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentProduction, EnvironmentSandbox:
		return true
	}
	return false
}

// Endpoint returns the requester API endpoint for the environment
func (e Environment) Endpoint() string {
	if e == EnvironmentProduction {
		return "https://mturk-requester.us-east-1.amazonaws.com"
	}
	return "https://mturk-requester-sandbox.us-east-1.amazonaws.com"
}

// PreviewURL returns the worker-facing preview link for a HIT group
func (e Environment) PreviewURL(groupID string) string {
	domain := "workersandbox.mturk.com"
	if e == EnvironmentProduction {
		domain = "worker.mturk.com"
	}
	return "https://" + domain + "/mturk/preview?groupId=" + groupID
}
