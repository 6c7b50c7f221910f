package roster

import (
	"fmt"
)

const (
	DefaultPresentToken = "TRUE"
	DefaultAbsentToken  = "FALSE"
)

// Codec maps a State to and from the two-row remote layout: row one holds the
// presence tokens, row two the comments, one column per member in roster order.
type Codec struct {
	Members      []Member
	PresentToken string
	AbsentToken  string
}

// NewCodec returns a codec with the default TRUE/FALSE tokens.
func NewCodec(members []Member) Codec {
	return Codec{
		Members:      members,
		PresentToken: DefaultPresentToken,
		AbsentToken:  DefaultAbsentToken,
	}
}

// Encode produces the full two-row value range for s. Members missing from s
// are written as absent with an empty comment.
func (c Codec) Encode(s State) [][]any {
	presence := make([]any, len(c.Members))
	comments := make([]any, len(c.Members))
	for i, m := range c.Members {
		st := s[m]
		if st.Present {
			presence[i] = c.PresentToken
		} else {
			presence[i] = c.AbsentToken
		}
		comments[i] = st.Comment
	}
	return [][]any{presence, comments}
}

// Decode parses a value range into a complete State. Missing rows or short
// rows fall back to defaults; anything that cannot be positionally mapped is
// reported as malformed.
func (c Codec) Decode(rows [][]any) (State, error) {
	state := NewState(c.Members)
	if len(rows) > 2 {
		return nil, c.malformed("expected at most 2 rows, got %d", len(rows))
	}
	for r, row := range rows {
		if len(row) > len(c.Members) {
			return nil, c.malformed("row %d has %d cells for %d members", r+1, len(row), len(c.Members))
		}
		for i, cell := range row {
			v, ok := cell.(string)
			if !ok {
				if cell == nil {
					continue
				}
				return nil, c.malformed("row %d column %d holds %T, want string", r+1, i+1, cell)
			}
			m := c.Members[i]
			st := state[m]
			if r == 0 {
				st.Present = v == c.PresentToken
			} else {
				st.Comment = v
			}
			state[m] = st
		}
	}
	return state, nil
}

func (c Codec) malformed(format string, args ...any) error {
	return NewRemoteError(KindMalformed, "decode", fmt.Sprintf(format, args...))
}
