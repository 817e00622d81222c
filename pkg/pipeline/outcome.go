package pipeline

type State string

const (
	StateLoaded    State = "loaded"
	StateGenerated State = "generated"
	StateEmbedded  State = "embedded"
	StatePersisted State = "persisted"
	StateRejected  State = "rejected"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

const (
	stageLoad     = "load"
	stageGenerate = "generate"
	stageEmbed    = "embed"
	stageDedup    = "dedup"
	stagePersist  = "persist"
)

// Outcome is the terminal state of one article. Stage and Err are set only
// for failures.
type Outcome struct {
	ArticleID   string
	Path        string
	State       State
	Stage       string
	Question    string
	Source      string
	MatchedWith string
	Similarity  float64
	Err         error
}

type Summary struct {
	RunID     string
	Total     int
	Persisted int
	Rejected  int
	Failed    int
	Skipped   int
	Outcomes  []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Total++
	switch o.State {
	case StatePersisted:
		s.Persisted++
	case StateRejected:
		s.Rejected++
	case StateSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}
