package ranking

import (
	"strings"
	"time"

	"mailpilot-backend/internal/prefs/domain"
	triage "mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/fuzzy"
)

// Heuristic signal weights. Keep in sync with tierFor thresholds below.
const (
	vipSenderBoost     = 3.0
	urgentSubjectBoost = 2.0
	recencyBoost       = 1.0
	intentSenderBoost  = 2.0
	intentSubjectBoost = 2.0
	strongGoalBoost    = 4.0
	weakGoalBoost      = 2.0
	engagementBoost    = 3.0
	importantLabel     = 4.0

	recencyWindow       = 12 * time.Hour
	strongGoalThreshold = 0.7
	engagedReplyRate    = 0.5
)

var defaultUrgentKeywords = []string{
	"urgent", "asap", "deadline", "action required", "immediately",
	"important", "overdue", "final notice", "expires",
}

// Scorer computes heuristic priority scores from message signals, user
// preferences, and prior context.
type Scorer struct {
	prefs   *domain.Preferences
	signals *triage.Signals
	now     func() time.Time
}

func NewScorer(prefs *domain.Preferences, signals *triage.Signals) *Scorer {
	return &Scorer{prefs: prefs, signals: signals, now: time.Now}
}

// Score runs the heuristic pass over a message. Every signal only adds,
// so strengthening any one signal can never lower the result.
func (s *Scorer) Score(msg *triage.Message, intent string) triage.ScoredMessage {
	score := 0.0

	if s.isVIP(msg.From) {
		score += vipSenderBoost
	}
	if s.hasUrgentKeyword(msg.Subject) {
		score += urgentSubjectBoost
	}
	if s.now().Sub(msg.ReceivedAt) <= recencyWindow {
		score += recencyBoost
	}
	if msg.HasLabel("IMPORTANT") {
		score += importantLabel
	}

	if intent != "" {
		tokens := fuzzy.Tokenize(intent, 0)
		if fuzzy.MatchesAny(msg.From+" "+msg.FromName, tokens) {
			score += intentSenderBoost
		}
		if fuzzy.MatchesAny(msg.Subject, tokens) {
			score += intentSubjectBoost
		}
	}

	score += s.goalBoost(msg)
	score += s.engagementBoost(msg.From)

	return triage.ScoredMessage{
		Message: msg,
		Score:   score,
		Tier:    tierFor(score),
	}
}

// ScoreAll applies the heuristic pass to a batch, preserving input order.
func (s *Scorer) ScoreAll(messages []triage.Message, intent string) []triage.ScoredMessage {
	scored := make([]triage.ScoredMessage, 0, len(messages))
	for i := range messages {
		scored = append(scored, s.Score(&messages[i], intent))
	}
	return scored
}

func (s *Scorer) isVIP(from string) bool {
	if s.prefs == nil {
		return false
	}
	fromLower := strings.ToLower(from)
	for _, vip := range s.prefs.VIPSenders {
		if vip != "" && strings.Contains(fromLower, strings.ToLower(vip)) {
			return true
		}
	}
	return false
}

func (s *Scorer) hasUrgentKeyword(subject string) bool {
	subjectLower := strings.ToLower(subject)
	for _, kw := range defaultUrgentKeywords {
		if strings.Contains(subjectLower, kw) {
			return true
		}
	}
	if s.prefs != nil {
		for _, kw := range s.prefs.UrgentKeywords {
			if kw != "" && strings.Contains(subjectLower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// goalBoost rewards messages matching a known user goal. A confident goal
// match outweighs an incidental one.
func (s *Scorer) goalBoost(msg *triage.Message) float64 {
	if s.signals == nil || len(s.signals.Goals) == 0 {
		return 0
	}

	text := msg.Subject + " " + msg.Snippet
	bestConfidence := -1.0
	for _, goal := range s.signals.Goals {
		keywords := goal.Keywords
		if len(keywords) == 0 {
			keywords = fuzzy.Tokenize(goal.Name, 0)
		}
		matched := false
		for _, kw := range keywords {
			if kw != "" && strings.Contains(strings.ToLower(text), strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if matched && goal.Confidence > bestConfidence {
			bestConfidence = goal.Confidence
		}
	}

	switch {
	case bestConfidence >= strongGoalThreshold:
		return strongGoalBoost
	case bestConfidence >= 0:
		return weakGoalBoost
	default:
		return 0
	}
}

func (s *Scorer) engagementBoost(from string) float64 {
	if s.signals == nil || len(s.signals.ReplyRate) == 0 {
		return 0
	}
	if rate, ok := s.signals.ReplyRate[strings.ToLower(from)]; ok && rate > engagedReplyRate {
		return engagementBoost
	}
	return 0
}

func tierFor(score float64) triage.Tier {
	switch {
	case score >= 4:
		return triage.TierHigh
	case score >= 2:
		return triage.TierMedium
	default:
		return triage.TierLow
	}
}
