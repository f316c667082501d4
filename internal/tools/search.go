package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// SearchTool is the semantic retrieval tool. It searches the course content
// index and returns formatted passages, each headed by its course and lesson,
// with the matching source references attached.
type SearchTool struct {
	// store is the vector index queried for content.
	store vectorstore.Store

	// maxResults caps how many passages one invocation returns.
	maxResults int
}

// searchInput is the JSON-serialisable input schema for SearchTool.
type searchInput struct {
	// Query is what to search for in the course content.
	Query string `json:"query"`

	// CourseName is an optional course filter, matched fuzzily.
	CourseName string `json:"course_name,omitempty"`

	// LessonNumber is an optional lesson filter within the course.
	LessonNumber *int `json:"lesson_number,omitempty"`
}

// NewSearchTool constructs a SearchTool over the given store. A non-positive
// maxResults falls back to the store default.
func NewSearchTool(store vectorstore.Store, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = vectorstore.DefaultMaxResults
	}
	return &SearchTool{store: store, maxResults: maxResults}
}

// Name returns the tool name exposed to the model.
func (t *SearchTool) Name() string { return "search_course_content" }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering. " +
		"Use this for questions about specific course content or detailed educational materials."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to search for in the course content.",
				Required: true,
			},
			"course_name": {
				Type: schema.String,
				Desc: "Course title to restrict the search to. Partial names are matched (e.g. 'MCP', 'Introduction').",
			},
			"lesson_number": {
				Type: schema.Integer,
				Desc: "Specific lesson number to search within (e.g. 1, 2, 3).",
			},
		}),
	}, nil
}

// Execute runs the search. An unresolvable course filter and an empty result
// set are both reported to the model as content, not as errors — they are
// answers the model should relay, not failures.
func (t *SearchTool) Execute(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return nil, fmt.Errorf("search_course_content: invalid input: %w", err)
	}

	results, err := t.store.Search(ctx, input.Query, input.CourseName, input.LessonNumber, t.maxResults)
	if err != nil {
		var notFound *vectorstore.CourseNotFoundError
		if errors.As(err, &notFound) {
			return &Result{Content: fmt.Sprintf("No course found matching '%s'", notFound.Name)}, nil
		}
		return nil, fmt.Errorf("search_course_content: %w", err)
	}

	if len(results) == 0 {
		return &Result{Content: emptyMessage(input)}, nil
	}

	var sections []string
	var sources []vectorstore.SourceRef
	for _, r := range results {
		header := "[" + r.Source.CourseTitle
		if r.Source.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *r.Source.LessonNumber)
		}
		header += "]"
		sections = append(sections, header+"\n"+r.Content)
		sources = append(sources, r.Source)
	}

	return &Result{
		Content: strings.Join(sections, "\n\n"),
		Sources: sources,
	}, nil
}

// emptyMessage builds the no-results message, naming any active filters so
// the model can tell the user what was searched.
func emptyMessage(input searchInput) string {
	msg := "No relevant content found"
	if input.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", input.CourseName)
	}
	if input.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *input.LessonNumber)
	}
	return msg + "."
}
