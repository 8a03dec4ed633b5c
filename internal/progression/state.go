package progression

// Placement is where a non-token node currently sits in the traversal.
type Placement string

const (
	PlacementHidden    Placement = "hidden"
	PlacementAvailable Placement = "available"
	PlacementVisited   Placement = "visited"
)

// ChangeResult reports what a status change did.
type ChangeResult int

const (
	NoChange ChangeResult = iota
	NewAsset
	RemovedAsset
	Modified
)

// StepChange is one recorded mutation inside a step.
type StepChange struct {
	ID       string `json:"id"`
	Delta    Amount `json:"delta"`
	Unlocked bool   `json:"unlocked,omitempty"`
}

// Step is one entry of a traversal's replay history.
type Step struct {
	Trigger         string         `json:"trigger"`
	Changes         []StepChange   `json:"changes"`
	AvailableByType map[string]int `json:"available_by_type,omitempty"`
}

func (s *Step) record(id string, delta Amount, unlocked bool) {
	if s == nil {
		return
	}
	s.Changes = append(s.Changes, StepChange{ID: id, Delta: delta, Unlocked: unlocked})
}

// State is one mutable traversal. It is created or reset per trial and
// must not be shared by two in-flight trials.
type State struct {
	Status         map[string]Amount
	Unlocked       map[string]bool
	Visited        map[string]bool
	Available      []string
	Hidden         []string
	Path           []*Step
	AddedTokens    map[string]float64
	ConsumedTokens map[string]float64
	Modifiers      *Modifiers

	placement map[string]Placement
}

// NewState returns an empty state. Engine.Reset must run before Step.
func NewState() *State {
	s := &State{}
	s.clear()
	return s
}

// PlacementOf returns where id currently sits. Tokens and unknown ids
// report false.
func (s *State) PlacementOf(id string) (Placement, bool) {
	p, ok := s.placement[id]
	return p, ok
}

// IsAvailable reports whether id is on the frontier.
func (s *State) IsAvailable(id string) bool {
	return s.placement[id] == PlacementAvailable
}

// Done reports whether the traversal has no more available nodes.
func (s *State) Done() bool {
	return len(s.Available) == 0
}

// Value returns the current status for id, falsy when untouched.
func (s *State) Value(id string) Amount {
	return s.Status[id]
}

func (s *State) clear() {
	s.Status = make(map[string]Amount)
	s.Unlocked = make(map[string]bool)
	s.Visited = make(map[string]bool)
	s.Available = s.Available[:0]
	s.Hidden = s.Hidden[:0]
	s.Path = nil
	s.AddedTokens = make(map[string]float64)
	s.ConsumedTokens = make(map[string]float64)
	s.placement = make(map[string]Placement)
}

// moveTo relocates id between the hidden list, the available list and the
// visited set, keeping the partition intact.
func (s *State) moveTo(id string, to Placement) {
	from, ok := s.placement[id]
	if ok && from == to {
		return
	}
	switch from {
	case PlacementHidden:
		s.Hidden = swapRemove(s.Hidden, id)
	case PlacementAvailable:
		s.Available = swapRemove(s.Available, id)
	case PlacementVisited:
		delete(s.Visited, id)
	}
	switch to {
	case PlacementHidden:
		s.Hidden = append(s.Hidden, id)
	case PlacementAvailable:
		s.Available = append(s.Available, id)
	case PlacementVisited:
		s.Visited[id] = true
	}
	s.placement[id] = to
}

func swapRemove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			last := len(ids) - 1
			ids[i] = ids[last]
			return ids[:last]
		}
	}
	return ids
}
