package pkg

import "time"

// FieldKey names one answer slot of the questionnaire.
type FieldKey string

// Answers maps a field key to the text the patient supplied for it.  Keys
// are only ever added or overwritten while a session is alive.
type Answers map[FieldKey]string

// Session represents one patient's in-progress questionnaire.  It is keyed
// by an opaque session key chosen by the transport (Telegram user ID, web
// chat UUID).  Step and ResumeTarget hold the engine's step names.
type Session struct {
	Key          string    `json:"key"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	StartedAt    time.Time `json:"started_at"`
	Step         string    `json:"step"`
	ResumeTarget string    `json:"resume_target,omitempty"`
	Answers      Answers   `json:"answers"`
}

// Clone returns a deep copy so stores never share the answers map with
// their callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Answers = make(Answers, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	return &out
}

// Record is the durable copy of a confirmed questionnaire.  Text holds the
// reviewer-facing report exactly as it was delivered.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Brief     string    `json:"brief,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordPreview is returned in the reviewer list of saved questionnaires.
type RecordPreview struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
