package model

// SourceInfo represents information extracted from source code events (push, pull_request)
type SourceInfo struct {
	Owner     string            // Repository owner
	Repo      string            // Repository name
	CommitSHA string            // Commit SHA
	EventType string            // Event type: "push", "pull_request"
	Action    string            // Event action, empty for push
	Ref       string            // Git ref pushed to, or PR head ref
	BaseRef   string            // PR base branch, empty for push
	Actor     string            // User who triggered the event
	Metadata  map[string]string // Event-specific metadata
}

// FullName returns "owner/repo"
func (s *SourceInfo) FullName() string {
	return s.Owner + "/" + s.Repo
}

// TriggerEvent converts the source information for trigger evaluation
func (s *SourceInfo) TriggerEvent() TriggerEvent {
	return TriggerEvent{
		Name:       s.EventType,
		Action:     s.Action,
		Ref:        s.Ref,
		BaseRef:    s.BaseRef,
		Repository: s.FullName(),
	}
}
