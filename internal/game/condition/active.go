package condition

import "strings"

// Condition is one condition applied to a participant.
//
// DC and Duration are optional: a nil Duration means the condition lasts until
// removed.
type Condition struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	DC       *int   `json:"dc,omitempty"`
	Duration *int   `json:"duration,omitempty"`
}

// Ref returns the identity used to match conditions: the slugged reference
// ID when present, otherwise the slugged name ("Blinded" and "blinded" match).
func (c Condition) Ref() string {
	if c.ID != "" {
		return Slug(c.ID)
	}
	return Slug(c.Name)
}

// Slug lowercases s and joins its words with underscores.
func Slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

func (c Condition) clone() Condition {
	out := c
	if c.DC != nil {
		v := *c.DC
		out.DC = &v
	}
	if c.Duration != nil {
		v := *c.Duration
		out.Duration = &v
	}
	return out
}

// Set is the ordered list of conditions on one participant.
//
// Set has value semantics: every method returns a fresh Set and never
// mutates the receiver. It is not safe for concurrent use; the owning store
// serialises access.
type Set []Condition

// Has reports whether a condition matching ref is present.
func (s Set) Has(ref string) bool {
	return s.index(ref) >= 0
}

// Get returns the condition matching ref.
func (s Set) Get(ref string) (Condition, bool) {
	if i := s.index(ref); i >= 0 {
		return s[i].clone(), true
	}
	return Condition{}, false
}

// With returns s plus c. If a condition with the same reference is already
// present its DC and duration are replaced in place, keeping its position.
//
// Postcondition: Has(c.Ref()) is true and no two entries share a reference.
func (s Set) With(c Condition) Set {
	out := s.Clone()
	if i := out.index(c.Ref()); i >= 0 {
		out[i].DC = c.clone().DC
		out[i].Duration = c.clone().Duration
		return out
	}
	return append(out, c.clone())
}

// Without returns s minus the condition matching ref. Absent refs are a no-op.
//
// Postcondition: Has(ref) is false.
func (s Set) Without(ref string) Set {
	out := make(Set, 0, len(s))
	key := Slug(ref)
	for _, c := range s {
		if c.Ref() == key {
			continue
		}
		out = append(out, c.clone())
	}
	return out
}

// Tick decrements every finite duration by one round. Conditions reaching
// zero are dropped and returned as expired. Indefinite conditions never expire.
func (s Set) Tick() (Set, []Condition) {
	out := make(Set, 0, len(s))
	var expired []Condition
	for _, c := range s {
		c = c.clone()
		if c.Duration != nil {
			*c.Duration--
			if *c.Duration <= 0 {
				expired = append(expired, c)
				continue
			}
		}
		out = append(out, c)
	}
	return out, expired
}

// Clone returns a deep copy of s. A nil Set clones to an empty, non-nil Set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for i, c := range s {
		out[i] = c.clone()
	}
	return out
}

// Names returns the display names in order.
func (s Set) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

func (s Set) index(ref string) int {
	key := Slug(ref)
	for i, c := range s {
		if c.Ref() == key {
			return i
		}
	}
	return -1
}
