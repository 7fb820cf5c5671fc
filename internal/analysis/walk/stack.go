package walk

import (
	"strconv"
	"strings"
)

// Frame is a pending return address: the Call at offset Call entered the
// subroutine that begins at Proc.
type Frame struct {
	Call int
	Proc int
}

// Stack is an immutable list of frames, innermost first. The nil *Stack is
// the empty stack. Push never modifies the receiver, so a stack may be
// shared by every state derived from it.
type Stack struct {
	top   Frame
	next  *Stack
	depth int
}

// Push returns s with f on top.
func (s *Stack) Push(f Frame) *Stack {
	return &Stack{top: f, next: s, depth: s.Depth() + 1}
}

// Pop returns s without its top frame.
func (s *Stack) Pop() *Stack {
	if s == nil {
		return nil
	}
	return s.next
}

// Top returns the innermost frame.
func (s *Stack) Top() (Frame, bool) {
	if s == nil {
		return Frame{}, false
	}
	return s.top, true
}

func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Unwind finds the innermost frame of the subroutine proc and returns it
// together with the stack below it. When no frame belongs to proc, s is
// returned unchanged.
func (s *Stack) Unwind(proc int) (Frame, *Stack, bool) {
	for t := s; t != nil; t = t.next {
		if t.top.Proc == proc {
			return t.top, t.next, true
		}
	}
	return Frame{}, s, false
}

// Frames returns the frames innermost first.
func (s *Stack) Frames() []Frame {
	out := make([]Frame, 0, s.Depth())
	for t := s; t != nil; t = t.next {
		out = append(out, t.top)
	}
	return out
}

// Equal reports whether s and o hold the same frames.
func (s *Stack) Equal(o *Stack) bool {
	for s != nil && o != nil {
		if s == o {
			return true
		}
		if s.top != o.top {
			return false
		}
		s, o = s.next, o.next
	}
	return s == nil && o == nil
}

// String lists the call offsets, innermost first.
func (s *Stack) String() string {
	parts := make([]string, 0, s.Depth())
	for t := s; t != nil; t = t.next {
		parts = append(parts, strconv.Itoa(t.top.Call))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type spineKey struct {
	next  *Stack
	frame Frame
}

// spines hash-conses stacks: equal spines share one pointer, so a state can
// be keyed by (offset, *Stack).
type spines map[spineKey]*Stack

func (sp spines) push(s *Stack, f Frame) *Stack {
	k := spineKey{s, f}
	if t, ok := sp[k]; ok {
		return t
	}
	t := s.Push(f)
	sp[k] = t
	return t
}
