package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/courseai-go/internal/store"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// OutlineTool returns a course's structural outline: title, link, instructor,
// and the full lesson list. The course name is resolved fuzzily through the
// vector catalog, then the outline is read from the metadata store, so no
// content embedding round-trip is needed.
type OutlineTool struct {
	// resolver fuzzy-matches course names to canonical titles.
	resolver vectorstore.Store

	// catalog holds the structural metadata keyed by exact title.
	catalog store.CatalogStore
}

// outlineInput is the JSON-serialisable input schema for OutlineTool.
type outlineInput struct {
	// CourseName is the course to outline, matched fuzzily.
	CourseName string `json:"course_name"`
}

// NewOutlineTool constructs an OutlineTool over the given resolver and catalog.
func NewOutlineTool(resolver vectorstore.Store, catalog store.CatalogStore) *OutlineTool {
	return &OutlineTool{resolver: resolver, catalog: catalog}
}

// Name returns the tool name exposed to the model.
func (t *OutlineTool) Name() string { return "get_course_outline" }

// Description returns the LLM-facing description of this tool.
func (t *OutlineTool) Description() string {
	return "Get the complete outline of a course including its title, link, and all lessons. " +
		"Use this for questions about course structure, lesson lists, or what a course covers."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *OutlineTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"course_name": {
				Type:     schema.String,
				Desc:     "Course title to outline. Partial names are matched (e.g. 'MCP', 'Introduction').",
				Required: true,
			},
		}),
	}, nil
}

// Execute resolves the course name and formats its outline. An unresolvable
// name is reported as content so the model can relay it.
func (t *OutlineTool) Execute(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var input outlineInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return nil, fmt.Errorf("get_course_outline: invalid input: %w", err)
	}
	if input.CourseName == "" {
		return nil, fmt.Errorf("get_course_outline: course_name is required")
	}

	title, err := t.resolver.ResolveCourse(ctx, input.CourseName)
	if err != nil {
		var notFound *vectorstore.CourseNotFoundError
		if errors.As(err, &notFound) {
			return &Result{Content: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
		}
		return nil, fmt.Errorf("get_course_outline: %w", err)
	}

	course, err := t.catalog.Course(ctx, title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Resolved in the vector catalog but missing from the metadata
			// store: the two indexes are out of sync.
			return &Result{Content: fmt.Sprintf("Course metadata not found for '%s'", title)}, nil
		}
		return nil, fmt.Errorf("get_course_outline: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", course.Title)
	if course.Instructor != "" {
		fmt.Fprintf(&b, "**Instructor:** %s\n", course.Instructor)
	}
	if course.Link != "" {
		fmt.Fprintf(&b, "**Course Link:** %s\n", course.Link)
	}
	fmt.Fprintf(&b, "\n%d lessons:\n", len(course.Lessons))
	for _, l := range course.Lessons {
		fmt.Fprintf(&b, "Lesson %d: %s\n", l.Number, l.Title)
	}

	return &Result{
		Content: strings.TrimRight(b.String(), "\n"),
		Sources: []vectorstore.SourceRef{{CourseTitle: course.Title, Link: course.Link}},
	}, nil
}
