// Package dictation turns a stream of normalized audio blocks into stabilized
// text. It owns the utterance state machine, the transcription scheduler and
// the local-agreement stabilizer, and drives an output sink.
package dictation

// State is the utterance segmentation state.
type State int

const (
	Idle State = iota
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Action tells the pipeline what to do with the block that was just classified.
type Action int

const (
	// ActionDiscard drops the block; no utterance is active.
	ActionDiscard Action = iota
	// ActionStart opens a new utterance with this block.
	ActionStart
	// ActionAppend adds the block to the active utterance.
	ActionAppend
	// ActionFinalize adds the block and then closes the utterance.
	ActionFinalize
)

const minSilenceBlocks = 3

// SilenceLimit returns how many consecutive silent blocks end an utterance.
func SilenceLimit(minSilenceMS, blockMS int) int {
	if blockMS <= 0 {
		return minSilenceBlocks
	}
	return max(minSilenceBlocks, minSilenceMS/blockMS)
}

// Segmenter is the IDLE/SPEAKING state machine. It holds no audio.
type Segmenter struct {
	state   State
	silence int
	limit   int
}

func NewSegmenter(silenceLimit int) *Segmenter {
	if silenceLimit < 1 {
		silenceLimit = 1
	}
	return &Segmenter{limit: silenceLimit}
}

// Observe advances the state machine by one block.
func (s *Segmenter) Observe(hasSpeech bool) Action {
	switch s.state {
	case Idle:
		if !hasSpeech {
			return ActionDiscard
		}
		s.state = Speaking
		s.silence = 0
		return ActionStart
	default:
		if hasSpeech {
			s.silence = 0
			return ActionAppend
		}
		s.silence++
		if s.silence >= s.limit {
			s.state = Idle
			s.silence = 0
			return ActionFinalize
		}
		return ActionAppend
	}
}

// Reset forces the machine back to Idle.
func (s *Segmenter) Reset() {
	s.state = Idle
	s.silence = 0
}

func (s *Segmenter) State() State  { return s.state }
func (s *Segmenter) Silence() int { return s.silence }
func (s *Segmenter) Limit() int   { return s.limit }
