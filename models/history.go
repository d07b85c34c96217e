package models

import (
	"encoding/json"
	"fmt"
)

// Turn is one question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// History is an immutable, oldest-first sequence of turns. The zero value is
// an empty history. On the wire it is encoded as [[question, answer], ...].
type History struct {
	turns []Turn
}

// NewHistory copies turns into a new History.
func NewHistory(turns ...Turn) History {
	if len(turns) == 0 {
		return History{}
	}
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	return History{turns: cp}
}

// Append returns a new History with t added at the end. h is left untouched.
func (h History) Append(t Turn) History {
	next := make([]Turn, len(h.turns), len(h.turns)+1)
	copy(next, h.turns)
	return History{turns: append(next, t)}
}

// Turns returns a copy of the turns.
func (h History) Turns() []Turn {
	cp := make([]Turn, len(h.turns))
	copy(cp, h.turns)
	return cp
}

func (h History) Len() int { return len(h.turns) }

func (h History) IsEmpty() bool { return len(h.turns) == 0 }

// MarshalJSON encodes the history as an array of [question, answer] pairs.
func (h History) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(h.turns))
	for i, t := range h.turns {
		pairs[i] = [2]string{t.Question, t.Answer}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes an array of [question, answer] pairs. null decodes to
// an empty history.
func (h *History) UnmarshalJSON(data []byte) error {
	var pairs [][]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("history must be an array of [question, answer] pairs: %w", err)
	}
	turns := make([]Turn, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("history entry %d has %d elements, want 2", i, len(p))
		}
		turns = append(turns, Turn{Question: p[0], Answer: p[1]})
	}
	*h = NewHistory(turns...)
	return nil
}
