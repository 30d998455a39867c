package jobs

type JobType string

const (
	// JobLoginLink delivers a passwordless login link by email.
	JobLoginLink JobType = "auth.login_link"
)

// IsValid reports whether the worker knows how to run t.
func (t JobType) IsValid() bool {
	switch t {
	case JobLoginLink:
		return true
	default:
		return false
	}
}
