// Package router implements the per-turn decision state machine. Each user
// message is classified into exactly one decision path, then dispatched to
// the matching generator: grounded answering with retrieval, a reflective
// cross-question, a casual no-retrieval reply, or an out-of-scope denial.
package router

import "fmt"

// DecisionPath is the routing classification for one conversational turn.
// Chosen once per turn; there is no mid-turn re-routing.
type DecisionPath int

const (
	// PathNoRetrieval handles casual conversation, greetings and requests
	// to restate the assistant's own previous statement.
	PathNoRetrieval DecisionPath = iota

	// PathRetrieve handles turns that need factual grounding in the
	// AI/education knowledge base.
	PathRetrieve

	// PathCrossQuestion answers with a reflective question instead of a
	// direct answer.
	PathCrossQuestion

	// PathDeny handles queries unrelated to AI and education.
	PathDeny
)

// Classifier labels, as emitted by the classification model.
const (
	labelNoRetrieval   = "no-retrieval reply"
	labelRetrieve      = "retrieve"
	labelCrossQuestion = "cross-question"
	labelDeny          = "deny"
)

// String returns the classifier label for the path.
func (p DecisionPath) String() string {
	switch p {
	case PathNoRetrieval:
		return labelNoRetrieval
	case PathRetrieve:
		return labelRetrieve
	case PathCrossQuestion:
		return labelCrossQuestion
	case PathDeny:
		return labelDeny
	default:
		return fmt.Sprintf("DecisionPath(%d)", int(p))
	}
}

// ClassificationError reports that the classifier produced a label outside
// the closed path set. Fatal for the turn; no default path is assumed, since
// guessing wrong has asymmetric costs (silently denying a valid question is
// worse than a visible failure).
type ClassificationError struct {
	Label string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifier produced unknown decision path %q", e.Label)
}

// parsePath maps a classifier label to its DecisionPath.
func parsePath(label string) (DecisionPath, error) {
	switch label {
	case labelNoRetrieval:
		return PathNoRetrieval, nil
	case labelRetrieve:
		return PathRetrieve, nil
	case labelCrossQuestion:
		return PathCrossQuestion, nil
	case labelDeny:
		return PathDeny, nil
	default:
		return 0, &ClassificationError{Label: label}
	}
}
