// Package docparse parses raw course transcript documents into structured
// Course and Lesson records. The expected document shape is:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<lesson body...>
//
//	Lesson 1: ...
//
// Only the Course Title header is mandatory. Parsing is line-oriented and
// tolerant of extra whitespace; unknown header lines are ignored.
package docparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Course is one ingested course document. Title is the unique identifier
// across the corpus; re-ingesting a document with the same title replaces
// the prior version.
type Course struct {
	// Title is the unique course identifier.
	Title string

	// Instructor is the course instructor name. Empty if the header is absent.
	Instructor string

	// Link is the course reference URL. Empty if the header is absent.
	Link string

	// Lessons is the ordered list of lessons as they appear in the document.
	Lessons []Lesson
}

// Lesson is a single lesson within a Course. Number is unique within the
// course but not necessarily contiguous.
type Lesson struct {
	// Number is the lesson number from the "Lesson <N>:" marker.
	Number int

	// Title is the lesson title following the marker.
	Title string

	// Link is the lesson URL from an optional "Lesson Link:" line. May be empty.
	Link string

	// Body is the raw, unsegmented lesson text. Chunking happens downstream.
	Body string
}

// MalformedDocumentError reports a document that cannot be parsed into a
// Course. It is returned per document so batch ingestion can skip the bad
// input and continue.
type MalformedDocumentError struct {
	// Reason describes what was wrong with the document.
	Reason string
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("docparse: malformed document: %s", e.Reason)
}

// Header prefixes recognised at the top of a document.
const (
	titleHeader      = "Course Title:"
	linkHeader       = "Course Link:"
	instructorHeader = "Course Instructor:"
	lessonLinkHeader = "Lesson Link:"
)

// lessonMarker matches a "Lesson <N>: <title>" boundary line.
var lessonMarker = regexp.MustCompile(`^\s*Lesson\s+(\d+)\s*:\s*(.*)$`)

// Parse converts raw document text into a Course. It fails with a
// *MalformedDocumentError if the mandatory Course Title header is absent.
// Text before the first lesson marker (other than headers) is discarded.
// Parsing identical input always yields a structurally identical Course.
func Parse(raw string) (*Course, error) {
	course := &Course{}
	lines := strings.Split(raw, "\n")

	var current *Lesson
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(body.String())
		course.Lessons = append(course.Lessons, *current)
		current = nil
		body.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()
			// The marker regex only admits digits, so Atoi cannot fail.
			n, _ := strconv.Atoi(m[1])
			current = &Lesson{Number: n, Title: strings.TrimSpace(m[2])}
			continue
		}

		if current != nil {
			// Inside a lesson: the only recognised header is the lesson link,
			// and only directly after the marker (before any body text).
			if body.Len() == 0 && strings.HasPrefix(trimmed, lessonLinkHeader) {
				current.Link = headerValue(trimmed, lessonLinkHeader)
				continue
			}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}

		// Preamble: course headers, or text that is discarded.
		switch {
		case strings.HasPrefix(trimmed, titleHeader):
			course.Title = headerValue(trimmed, titleHeader)
		case strings.HasPrefix(trimmed, linkHeader):
			course.Link = headerValue(trimmed, linkHeader)
		case strings.HasPrefix(trimmed, instructorHeader):
			course.Instructor = headerValue(trimmed, instructorHeader)
		}
	}
	flush()

	if course.Title == "" {
		return nil, &MalformedDocumentError{Reason: "missing mandatory 'Course Title:' header"}
	}

	return course, nil
}

// Lesson returns the lesson with the given number, or nil if absent.
func (c *Course) Lesson(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// headerValue strips the header prefix and surrounding whitespace.
func headerValue(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}
