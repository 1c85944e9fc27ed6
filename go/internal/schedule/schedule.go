// Package schedule maps wall-clock time onto a competition's question
// sequence. It is the single authority for "what round are we in"; stored
// answers are historical fact only and never drive position.
package schedule

import "time"

// Windows holds the per-question timing shared by every competition.
type Windows struct {
	Answer time.Duration `yaml:"answer"`
	Rest   time.Duration `yaml:"rest"`
}

// DefaultWindows matches the production schedule: a 20s answer window
// followed by a 5s rest before the next reveal.
func DefaultWindows() Windows {
	return Windows{Answer: 20 * time.Second, Rest: 5 * time.Second}
}

func (w Windows) period() time.Duration {
	return w.Answer + w.Rest
}

// Slot returns the unclamped 1-based question slot at now, or 0 before
// start. Naive inputs are normalized to a single zone before subtracting.
func (w Windows) Slot(startAt, now time.Time) int {
	now = now.In(startAt.Location())
	if now.Before(startAt) {
		return 0
	}
	elapsed := now.Sub(startAt)
	return int(elapsed/w.period()) + 1
}

// CurrentQuestionNumber returns the question visible at now, clamped to
// questionCount. 0 means the competition has not started.
func (w Windows) CurrentQuestionNumber(startAt time.Time, questionCount int, now time.Time) int {
	slot := w.Slot(startAt, now)
	if slot > questionCount {
		return questionCount
	}
	return slot
}

// IsStarted reports whether the competition's start time has passed.
func (w Windows) IsStarted(startAt, now time.Time) bool {
	return !now.In(startAt.Location()).Before(startAt)
}

// IsFinished reports whether the schedule is exhausted. A competition with
// zero questions finishes the instant it starts.
func (w Windows) IsFinished(startAt time.Time, questionCount int, now time.Time) bool {
	return w.IsStarted(startAt, now) && w.Slot(startAt, now) > questionCount
}

// IsInProgress reports whether the competition has started and still has
// questions on its schedule.
func (w Windows) IsInProgress(startAt time.Time, questionCount int, now time.Time) bool {
	return w.IsStarted(startAt, now) && !w.IsFinished(startAt, questionCount, now)
}

// QuestionRevealAt returns the instant the numbered question becomes
// visible.
func (w Windows) QuestionRevealAt(startAt time.Time, number int) time.Time {
	return startAt.Add(time.Duration(number-1) * w.period())
}

// AnswerRevealAt returns the instant the numbered question's correct
// choice may be disclosed: its answer window has closed.
func (w Windows) AnswerRevealAt(startAt time.Time, number int) time.Time {
	return w.QuestionRevealAt(startAt, number).Add(w.Answer)
}

// StatsAt returns the instant the survivor stats for the numbered question
// are broadcast, which coincides with the answer window closing.
func (w Windows) StatsAt(startAt time.Time, number int) time.Time {
	return w.AnswerRevealAt(startAt, number)
}

// NextBoundary returns the next reveal instant at or after now. A restarted
// driver resumes from here instead of a saved offset, so process restarts
// and clock drift self-correct.
func (w Windows) NextBoundary(startAt, now time.Time) time.Time {
	slot := w.Slot(startAt, now)
	if slot == 0 {
		return startAt
	}
	reveal := w.QuestionRevealAt(startAt, slot)
	if !reveal.Before(now.In(startAt.Location())) {
		return reveal
	}
	return w.QuestionRevealAt(startAt, slot+1)
}
