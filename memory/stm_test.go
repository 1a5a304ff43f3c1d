package memory

import (
	"fmt"
	"testing"
)

func TestSTM_AppendEvictsOldest(t *testing.T) {
	s := NewSTM(3)
	for i := 0; i < 5; i++ {
		s.Append(NewMessage(RoleUser, fmt.Sprintf("msg-%d", i), "t1"))
	}
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}
	got := s.Recent(0)
	want := []string{"msg-2", "msg-3", "msg-4"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("index %d: expected %q, got %q", i, w, got[i].Content)
		}
	}
}

func TestSTM_RecentWindow(t *testing.T) {
	s := NewSTM(10)
	for i := 0; i < 6; i++ {
		s.Append(NewMessage(RoleUser, fmt.Sprintf("msg-%d", i), "t1"))
	}

	got := s.Recent(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "msg-4" || got[1].Content != "msg-5" {
		t.Errorf("expected chronological tail, got %q then %q", got[0].Content, got[1].Content)
	}

	// Asking for more than we have returns everything, not an error.
	if got := s.Recent(100); len(got) != 6 {
		t.Errorf("expected 6 messages, got %d", len(got))
	}
}

func TestSTM_Clear(t *testing.T) {
	s := NewSTM(5)
	s.Append(NewMessage(RoleUser, "hello", "t1"))
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", s.Len())
	}
	s.Append(NewMessage(RoleUser, "again", "t2"))
	if s.Len() != 1 {
		t.Fatalf("buffer unusable after Clear, len %d", s.Len())
	}
}
