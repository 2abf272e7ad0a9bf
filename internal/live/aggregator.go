// Package live keeps a viewer's projection of a class session: the current
// question and the latest answer of every student to it. The projection is
// built from an unordered, possibly duplicated stream of change events.
package live

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
)

type Event interface {
	isEvent()
}

type QuestionCreated struct {
	Question models.ClassQuestion
}

type SubmissionUpserted struct {
	Submission models.ClassSubmission
}

// SessionEnded is derived from a session row turning inactive.
type SessionEnded struct{}

func (QuestionCreated) isEvent()    {}
func (SubmissionUpserted) isEvent() {}
func (SessionEnded) isEvent()       {}

type Entry struct {
	StudentID string
	Answer    string
	UpdatedAt time.Time
}

// State is Idle while Question is nil and Watching(Question) otherwise.
// Submissions is keyed by student id and never mutated in place.
type State struct {
	Question    *models.ClassQuestion
	Submissions map[string]Entry
	Ended       bool
}

// Apply is the transition function. It is pure: s is never modified.
func Apply(s State, ev Event) State {
	next, _ := transition(s, ev)
	return next
}

func transition(s State, ev Event) (State, bool) {
	switch e := ev.(type) {
	case QuestionCreated:
		if s.Question != nil && !e.Question.CreatedAt.After(s.Question.CreatedAt) {
			return s, false
		}
		q := e.Question
		// A new question always starts an empty board.
		return State{Question: &q, Submissions: map[string]Entry{}, Ended: s.Ended}, true

	case SubmissionUpserted:
		sub := e.Submission
		if s.Question == nil || sub.QuestionID != s.Question.ID || sub.SessionID != s.Question.SessionID {
			return s, false
		}
		if prev, ok := s.Submissions[sub.StudentID]; ok && !supersedes(sub, prev) {
			return s, false
		}
		subs := make(map[string]Entry, len(s.Submissions)+1)
		for k, v := range s.Submissions {
			subs[k] = v
		}
		subs[sub.StudentID] = Entry{StudentID: sub.StudentID, Answer: sub.Answer, UpdatedAt: sub.UpdatedAt}
		return State{Question: s.Question, Submissions: subs, Ended: s.Ended}, true

	case SessionEnded:
		if s.Ended {
			return s, false
		}
		s.Ended = true
		return s, true
	}
	return s, false
}

// supersedes orders two versions of one student's row. Equal timestamps fall
// back to comparing answers so the merge stays commutative.
func supersedes(sub models.ClassSubmission, prev Entry) bool {
	if sub.UpdatedAt.Equal(prev.UpdatedAt) {
		return sub.Answer > prev.Answer
	}
	return sub.UpdatedAt.After(prev.UpdatedAt)
}

type Stats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// IsCorrect compares trimmed strings, so "05" and "5" differ.
func IsCorrect(answer, correctAnswer string) bool {
	return strings.TrimSpace(answer) == strings.TrimSpace(correctAnswer)
}

func (s State) Stats() Stats {
	st := Stats{Total: len(s.Submissions)}
	if s.Question != nil {
		for _, e := range s.Submissions {
			if IsCorrect(e.Answer, s.Question.CorrectAnswer) {
				st.Correct++
			}
		}
	}
	st.Wrong = st.Total - st.Correct
	return st
}

type Row struct {
	StudentID string    `json:"student_id"`
	Answer    string    `json:"answer"`
	Correct   bool      `json:"correct"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is the rendered projection sent to viewers.
type View struct {
	SessionID   string                `json:"session_id"`
	Question    *models.ClassQuestion `json:"question"`
	Submissions []Row                 `json:"submissions"`
	Stats       Stats                 `json:"stats"`
	Ended       bool                  `json:"ended"`
}

// View renders rows ordered by student id.
func (s State) View(sessionID string) View {
	v := View{
		SessionID:   sessionID,
		Submissions: make([]Row, 0, len(s.Submissions)),
		Stats:       s.Stats(),
		Ended:       s.Ended,
	}
	if s.Question != nil {
		q := *s.Question
		v.Question = &q
	}
	for _, e := range s.Submissions {
		row := Row{StudentID: e.StudentID, Answer: e.Answer, UpdatedAt: e.UpdatedAt}
		if s.Question != nil {
			row.Correct = IsCorrect(e.Answer, s.Question.CorrectAnswer)
		}
		v.Submissions = append(v.Submissions, row)
	}
	sort.Slice(v.Submissions, func(a, b int) bool {
		return v.Submissions[a].StudentID < v.Submissions[b].StudentID
	})
	return v
}

// Aggregator owns one viewer's State.
type Aggregator struct {
	mu    sync.Mutex
	state State
}

func NewAggregator() *Aggregator {
	return &Aggregator{state: State{Submissions: map[string]Entry{}}}
}

// Apply reports whether the event changed the state.
func (a *Aggregator) Apply(ev Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, changed := transition(a.state, ev)
	a.state = next
	return changed
}

// Reset returns to Idle, keeping nothing from before.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{Submissions: map[string]Entry{}}
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// DecodeChange maps a transport event onto an aggregator event. Rows that do
// not decode, belong to another topic or carry no meaning for the projection
// are reported as not ok.
func DecodeChange(ev pubsub.Event) (Event, bool) {
	switch ev.Entity {
	case pubsub.EntityQuestion:
		var q models.ClassQuestion
		if err := json.Unmarshal(ev.Row, &q); err != nil || q.ID == "" || q.SessionID != ev.SessionID {
			return nil, false
		}
		return QuestionCreated{Question: q}, true

	case pubsub.EntitySubmission:
		var sub models.ClassSubmission
		if err := json.Unmarshal(ev.Row, &sub); err != nil || sub.StudentID == "" || sub.QuestionID == "" || sub.SessionID != ev.SessionID {
			return nil, false
		}
		return SubmissionUpserted{Submission: sub}, true

	case pubsub.EntitySession:
		var sess models.ClassSession
		if err := json.Unmarshal(ev.Row, &sess); err != nil || sess.ID != ev.SessionID || sess.Active {
			return nil, false
		}
		return SessionEnded{}, true
	}
	return nil, false
}

// ForStudent hides the correct answer and every other student's row.
func (v View) ForStudent(studentID string) View {
	out := View{SessionID: v.SessionID, Ended: v.Ended, Submissions: []Row{}}
	if v.Question != nil {
		q := *v.Question
		q.CorrectAnswer = ""
		out.Question = &q
	}
	for _, row := range v.Submissions {
		if row.StudentID == studentID {
			row.Correct = false
			out.Submissions = append(out.Submissions, row)
		}
	}
	out.Stats = Stats{Total: len(v.Submissions)}
	return out
}
