package transcript_test

import (
	"testing"

	"github.com/pvanloo/sonoria/internal/transcript"
)

func TestFlushTo_TurnOrdering(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	accum := transcript.NewAccumulator()

	accum.AddInput("hel")
	accum.AddInput("lo")
	accum.AddOutput("hi ")
	accum.AddOutput("there")

	turns := accum.FlushTo(log)
	if len(turns) != 2 {
		t.Fatalf("flushed %d turns; want 2", len(turns))
	}
	if turns[0].Speaker != transcript.SpeakerUser || turns[0].Text != "hello" {
		t.Errorf("turn 0 = {%s %q}; want {user \"hello\"}", turns[0].Speaker, turns[0].Text)
	}
	if turns[1].Speaker != transcript.SpeakerModel || turns[1].Text != "hi there" {
		t.Errorf("turn 1 = {%s %q}; want {model \"hi there\"}", turns[1].Speaker, turns[1].Text)
	}

	got := log.Turns()
	if len(got) != 2 {
		t.Fatalf("log has %d turns; want 2", len(got))
	}
	if got[0].Speaker != transcript.SpeakerUser || got[1].Speaker != transcript.SpeakerModel {
		t.Errorf("log order = [%s %s]; want [user model]", got[0].Speaker, got[1].Speaker)
	}
}

func TestFlushTo_SkipsEmptyBuffers(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	accum := transcript.NewAccumulator()

	accum.AddOutput("only the model spoke")
	turns := accum.FlushTo(log)
	if len(turns) != 1 {
		t.Fatalf("flushed %d turns; want 1", len(turns))
	}
	if turns[0].Speaker != transcript.SpeakerModel {
		t.Errorf("speaker = %s; want model", turns[0].Speaker)
	}

	// Whitespace-only text never becomes a turn.
	accum.AddInput("   \n ")
	if turns := accum.FlushTo(log); len(turns) != 0 {
		t.Errorf("whitespace flush appended %d turns; want 0", len(turns))
	}
	if log.Len() != 1 {
		t.Errorf("log len = %d; want 1", log.Len())
	}
}

func TestFlushTo_ResetsAccumulators(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	accum := transcript.NewAccumulator()

	accum.AddInput("first")
	accum.FlushTo(log)

	// Second flush with nothing added must append nothing.
	if turns := accum.FlushTo(log); len(turns) != 0 {
		t.Fatalf("stale flush appended %d turns", len(turns))
	}

	accum.AddInput("second")
	turns := accum.FlushTo(log)
	if len(turns) != 1 || turns[0].Text != "second" {
		t.Fatalf("turns = %+v; want one turn with text \"second\"", turns)
	}
}

func TestReset_DiscardsDeltas(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	accum := transcript.NewAccumulator()

	accum.AddInput("discard me")
	accum.AddOutput("and me")
	accum.Reset()

	if turns := accum.FlushTo(log); len(turns) != 0 {
		t.Errorf("flush after reset appended %d turns; want 0", len(turns))
	}
}

func TestLog_AppendAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	a := log.Append(transcript.SpeakerUser, "one")
	b := log.Append(transcript.SpeakerModel, "two")

	if a.ID == b.ID {
		t.Error("turns share an ID")
	}
	turns := log.Turns()
	if len(turns) != 2 || turns[0].Text != "one" || turns[1].Text != "two" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestLog_TurnsReturnsSnapshot(t *testing.T) {
	t.Parallel()

	log := transcript.NewLog()
	log.Append(transcript.SpeakerUser, "original")

	snap := log.Turns()
	snap[0].Text = "mutated"

	if got := log.Turns()[0].Text; got != "original" {
		t.Errorf("log text = %q; snapshot mutation leaked", got)
	}
}
