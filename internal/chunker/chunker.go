// Package chunker segments lesson text into overlapping, sentence-aligned
// chunks sized for embedding. Chunks end on sentence boundaries whenever one
// exists inside the window; a lone sentence longer than the window is hard
// cut at character boundaries so every chunk respects the size bound.
// Consecutive chunks share trailing text so that ideas spanning a boundary
// remain retrievable from either side.
package chunker

import (
	"regexp"
	"strings"

	"github.com/54b3r/courseai-go/internal/docparse"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// Default window parameters, in characters.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// Chunker packs sentences into character-budgeted windows.
type Chunker struct {
	// size is the maximum chunk length in characters. A single sentence
	// longer than size is hard cut at character boundaries.
	size int

	// overlap is the approximate number of trailing characters repeated at
	// the start of the next chunk.
	overlap int
}

// sentenceSplitter matches one sentence ending in terminal punctuation.
var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`)

// whitespaceRun collapses internal whitespace, including newlines.
var whitespaceRun = regexp.MustCompile(`\s+`)

// New returns a Chunker with the given window parameters. Non-positive
// values fall back to the defaults; overlap is clamped below size so every
// chunk makes forward progress.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// ChunkCourse segments every lesson of course into chunks carrying their
// course and lesson back-references. Chunk indexes restart at zero for each
// lesson. Lessons with empty bodies contribute nothing.
func (c *Chunker) ChunkCourse(course *docparse.Course) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	for i := range course.Lessons {
		lesson := &course.Lessons[i]
		for idx, text := range c.Split(lesson.Body) {
			n := lesson.Number
			chunks = append(chunks, vectorstore.Chunk{
				Text:         text,
				CourseTitle:  course.Title,
				LessonNumber: &n,
				ChunkIndex:   idx,
			})
		}
	}
	return chunks
}

// Split segments a single text into sentence-aligned windows. Identical
// input always yields identical output.
func (c *Chunker) Split(text string) []string {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	if normalized == "" {
		return nil
	}

	sentences := splitSentences(normalized)

	var out []string
	start := 0
	for start < len(sentences) {
		// A sentence that alone exceeds the window has no boundary to break
		// at; cut it at character boundaries instead.
		if len(sentences[start]) > c.size {
			out = append(out, c.hardCut(sentences[start])...)
			start++
			continue
		}

		// Greedily pack sentences until the next one would bust the budget.
		end := start
		length := 0
		for end < len(sentences) {
			add := len(sentences[end])
			if end > start {
				add++ // joining space
			}
			if length+add > c.size && end > start {
				break
			}
			length += add
			end++
		}

		out = append(out, strings.Join(sentences[start:end], " "))

		if end == len(sentences) {
			break
		}

		// Walk back from the window end accumulating the overlap, but never
		// past the point that would stall the scan.
		next := end
		carried := 0
		for next > start+1 && carried < c.overlap {
			if carried+len(sentences[next-1]) > c.overlap {
				break
			}
			carried += len(sentences[next-1]) + 1
			next--
		}
		start = next
	}

	return out
}

// hardCut slices an oversized sentence into size-length pieces, stepping by
// size minus overlap so consecutive pieces repeat the overlap characters.
// The constructor clamps overlap below size, so the step always advances.
func (c *Chunker) hardCut(s string) []string {
	step := c.size - c.overlap
	var out []string
	for begin := 0; ; begin += step {
		end := begin + c.size
		if end >= len(s) {
			if piece := strings.TrimSpace(s[begin:]); piece != "" {
				out = append(out, piece)
			}
			return out
		}
		out = append(out, strings.TrimSpace(s[begin:end]))
	}
}

// splitSentences breaks text into trimmed sentences. Text without terminal
// punctuation is treated as one sentence so no content is dropped.
func splitSentences(text string) []string {
	matches := sentenceSplitter.FindAllStringIndex(text, -1)

	var sentences []string
	last := 0
	for _, m := range matches {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = m[1]
	}
	// Trailing text after the final terminator is still a sentence.
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
