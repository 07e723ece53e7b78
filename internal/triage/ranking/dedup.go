package ranking

import "mailpilot-backend/internal/triage/domain"

// DeduplicateThreads collapses a ranked list to one message per thread so
// deep analysis is never spent twice on the same conversation. The most
// recent message in a thread wins; on equal timestamps the earlier-ranked
// one stays. Messages without a thread id pass through untouched.
// Relative order of the surviving entries follows the input ranking, so
// running it twice is a no-op.
func DeduplicateThreads(scored []domain.ScoredMessage) []domain.ScoredMessage {
	type slot struct {
		index int
		msg   domain.ScoredMessage
	}

	byThread := make(map[string]slot)
	out := make([]domain.ScoredMessage, 0, len(scored))

	for _, sm := range scored {
		threadID := sm.Message.ThreadID
		if threadID == "" {
			out = append(out, sm)
			continue
		}

		existing, ok := byThread[threadID]
		if !ok {
			byThread[threadID] = slot{index: len(out), msg: sm}
			out = append(out, sm)
			continue
		}
		if sm.Message.ReceivedAt.After(existing.msg.Message.ReceivedAt) {
			byThread[threadID] = slot{index: existing.index, msg: sm}
			out[existing.index] = sm
		}
	}

	return out
}
