package chunker

import (
	"strings"
	"testing"

	"github.com/54b3r/courseai-go/internal/docparse"
)

func Test_Split_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()

	c := New(800, 100)
	got := c.Split("One short sentence. And another one.")
	if len(got) != 1 {
		t.Fatalf("want 1 chunk, got %d: %v", len(got), got)
	}
	if got[0] != "One short sentence. And another one." {
		t.Errorf("chunk: got %q", got[0])
	}
}

func Test_Split_EmptyText(t *testing.T) {
	t.Parallel()

	c := New(800, 100)
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("want nil for blank text, got %v", got)
	}
}

func Test_Split_NeverSplitsSentences(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is a filler sentence used to force several chunks. ")
	}

	c := New(200, 50)
	chunks := c.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if !strings.HasSuffix(ch, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, ch)
		}
		if !strings.HasPrefix(ch, "This is a filler") {
			t.Errorf("chunk %d does not start at a sentence boundary: %q", i, ch)
		}
	}
}

func Test_Split_SizeRespectedForNormalSentences(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number with a handful of words in it. ")
	}

	c := New(300, 60)
	for i, ch := range c.Split(b.String()) {
		if len(ch) > 300 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(ch))
		}
	}
}

func Test_Split_OverlapRepeatsTrailingSentence(t *testing.T) {
	t.Parallel()

	text := "Alpha sentence one here. Beta sentence two here. Gamma sentence three here. Delta sentence four here. Epsilon sentence five here."
	c := New(60, 30)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d: %v", len(chunks), chunks)
	}
	for i := 1; i < len(chunks); i++ {
		firstSentence := strings.SplitAfter(chunks[i], ".")[0]
		if !strings.Contains(chunks[i-1], strings.TrimSpace(firstSentence)) {
			t.Errorf("chunk %d does not overlap with its predecessor:\nprev: %q\ncurr: %q", i, chunks[i-1], chunks[i])
		}
	}
}

func Test_Split_NoContentLost(t *testing.T) {
	t.Parallel()

	text := "First unique marker. Second unique marker. Third unique marker. Fourth unique marker. Fifth unique marker. Sixth unique marker."
	c := New(50, 20)
	joined := strings.Join(c.Split(text), " ")
	for _, marker := range []string{"First", "Second", "Third", "Fourth", "Fifth", "Sixth"} {
		if !strings.Contains(joined, marker) {
			t.Errorf("marker %q lost during chunking", marker)
		}
	}
}

func Test_Split_OversizedSentenceHardCut(t *testing.T) {
	t.Parallel()

	long := "This single sentence is deliberately much longer than the configured chunk size so it cannot be packed with anything else at all."
	c := New(40, 10)
	chunks := c.Split(long + " Tiny tail.")
	if len(chunks) < 3 {
		t.Fatalf("want several hard-cut chunks, got %d: %v", len(chunks), chunks)
	}
	for i, ch := range chunks {
		if len(ch) > 40 {
			t.Errorf("chunk %d exceeds size after hard cut: %d chars: %q", i, len(ch), ch)
		}
	}
	if last := chunks[len(chunks)-1]; last != "Tiny tail." {
		t.Errorf("trailing sentence: got %q", last)
	}
}

func Test_Split_HardCutBoundsEveryChunk(t *testing.T) {
	t.Parallel()

	// One unbroken 2000+ character sentence: no boundary to break at.
	long := strings.TrimSpace(strings.Repeat("retrieval ", 201)) + "."
	chunks := New(800, 100).Split(long)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch) > 800 {
			t.Errorf("chunk %d has %d chars, exceeds chunk size 800", i, len(ch))
		}
	}
}

func Test_Split_HardCutCarriesOverlap(t *testing.T) {
	t.Parallel()

	long := "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ."
	chunks := New(30, 10).Split(long)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d: %v", len(chunks), chunks)
	}
	for i := 1; i < len(chunks); i++ {
		head := chunks[i][:10]
		if !strings.HasSuffix(chunks[i-1], head) {
			t.Errorf("chunk %d does not repeat its predecessor's tail:\nprev: %q\ncurr: %q", i, chunks[i-1], chunks[i])
		}
	}
}

func Test_Split_TextWithoutTerminator(t *testing.T) {
	t.Parallel()

	c := New(800, 100)
	got := c.Split("no punctuation at all just words")
	if len(got) != 1 || got[0] != "no punctuation at all just words" {
		t.Errorf("got %v", got)
	}
}

func Test_Split_NormalizesWhitespace(t *testing.T) {
	t.Parallel()

	c := New(800, 100)
	got := c.Split("Line one.\nLine   two.\n\nLine three.")
	if len(got) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(got))
	}
	if got[0] != "Line one. Line two. Line three." {
		t.Errorf("got %q", got[0])
	}
}

func Test_Split_Deterministic(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("A repeated sentence for determinism checks. ")
	}
	c := New(150, 40)
	first := c.Split(b.String())
	second := c.Split(b.String())
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func Test_ChunkCourse_BackReferences(t *testing.T) {
	t.Parallel()

	course := &docparse.Course{
		Title: "Intro to Testing",
		Lessons: []docparse.Lesson{
			{Number: 1, Title: "Basics", Body: "Unit tests verify behavior. They run fast."},
			{Number: 2, Title: "Doubles", Body: ""},
			{Number: 4, Title: "Integration", Body: "Integration tests cross boundaries."},
		},
	}

	chunks := New(800, 100).ChunkCourse(course)
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}

	if chunks[0].CourseTitle != "Intro to Testing" {
		t.Errorf("course title: got %q", chunks[0].CourseTitle)
	}
	if chunks[0].LessonNumber == nil || *chunks[0].LessonNumber != 1 {
		t.Errorf("lesson 1 back-reference: got %v", chunks[0].LessonNumber)
	}
	if chunks[0].ChunkIndex != 0 {
		t.Errorf("chunk index: got %d", chunks[0].ChunkIndex)
	}
	if chunks[1].LessonNumber == nil || *chunks[1].LessonNumber != 4 {
		t.Errorf("lesson 4 back-reference: got %v", chunks[1].LessonNumber)
	}
}

func Test_ChunkCourse_IndexesRestartPerLesson(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Another filler sentence to push past one chunk. ")
	}
	body := b.String()

	course := &docparse.Course{
		Title: "T",
		Lessons: []docparse.Lesson{
			{Number: 1, Body: body},
			{Number: 2, Body: body},
		},
	}

	chunks := New(200, 50).ChunkCourse(course)
	sawSecondLessonStart := false
	prevIdx := -1
	for _, ch := range chunks {
		if *ch.LessonNumber == 2 && !sawSecondLessonStart {
			if ch.ChunkIndex != 0 {
				t.Errorf("lesson 2 first chunk index: got %d", ch.ChunkIndex)
			}
			sawSecondLessonStart = true
			prevIdx = -1
		}
		if ch.ChunkIndex != prevIdx+1 {
			t.Errorf("chunk indexes not contiguous: got %d after %d", ch.ChunkIndex, prevIdx)
		}
		prevIdx = ch.ChunkIndex
	}
	if !sawSecondLessonStart {
		t.Error("no chunks produced for lesson 2")
	}
}

func Test_New_ClampsBadParameters(t *testing.T) {
	t.Parallel()

	c := New(0, -5)
	if c.size != DefaultChunkSize || c.overlap != DefaultOverlap {
		t.Errorf("defaults: got size=%d overlap=%d", c.size, c.overlap)
	}

	c = New(100, 100)
	if c.overlap >= c.size {
		t.Errorf("overlap not clamped below size: size=%d overlap=%d", c.size, c.overlap)
	}
}
