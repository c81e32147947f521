package animation

import "fmt"

// Library is an ordered collection of animations, looked up by name.
type Library struct {
	names  []string
	byName map[string]*Animation
}

func NewLibrary() *Library {
	return &Library{byName: make(map[string]*Animation)}
}

func (l *Library) Add(a *Animation) error {
	if _, ok := l.byName[a.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, a.Name)
	}
	l.names = append(l.names, a.Name)
	l.byName[a.Name] = a
	return nil
}

func (l *Library) Get(name string) (*Animation, bool) {
	a, ok := l.byName[name]
	return a, ok
}

// Names returns animation names in insertion order.
func (l *Library) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l *Library) Len() int {
	return len(l.names)
}

// Next returns the animation after name, wrapping to the first one. An
// unknown or empty name yields the first animation.
func (l *Library) Next(name string) string {
	if len(l.names) == 0 {
		return ""
	}
	for i, n := range l.names {
		if n == name {
			return l.names[(i+1)%len(l.names)]
		}
	}
	return l.names[0]
}
