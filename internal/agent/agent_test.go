package agent

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/courseai-go/internal/docparse"
	"github.com/54b3r/courseai-go/internal/ingestion"
	"github.com/54b3r/courseai-go/internal/session"
	"github.com/54b3r/courseai-go/internal/store"
	"github.com/54b3r/courseai-go/internal/tools"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// fakeModel is a scriptable model.ToolCallingChatModel. The script receives
// whether tools are currently bound plus the full message slice, so tests can
// assert on both the loop's phase and its transcript.
type fakeModel struct {
	bound    bool
	generate func(bound bool, msgs []*schema.Message) (*schema.Message, error)
}

func (f *fakeModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return f.generate(f.bound, msgs)
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("fake model: streaming not scripted")
}

func (f *fakeModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &fakeModel{bound: true, generate: f.generate}, nil
}

// hashEmbedder maps each word to one of 64 dimensions so related texts score
// close under cosine similarity.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 64)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,:;!?'\"")))
			vec[h.Sum32()%64]++
		}
		out[i] = vec
	}
	return out, nil
}

func intPtr(n int) *int { return &n }

// newTestManager builds a real tool manager over an in-memory index seeded
// with one course.
func newTestManager(t *testing.T) *tools.Manager {
	t.Helper()

	vs := vectorstore.NewMemoryStore(hashEmbedder{})
	course := &docparse.Course{
		Title: "Intro to Testing",
		Link:  "https://example.com/testing",
		Lessons: []docparse.Lesson{
			{Number: 2, Title: "Composition", Link: "https://example.com/testing/2"},
		},
	}
	chunks := []vectorstore.Chunk{
		{
			Text:         "Composition lets tests build complex fixtures from small reusable parts.",
			CourseTitle:  course.Title,
			LessonNumber: intPtr(2),
			ChunkIndex:   0,
		},
	}
	if err := vs.AddCourse(context.Background(), course, chunks); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	return tools.NewManager(tools.NewSearchTool(vs, 5))
}

func newAssistant(t *testing.T, fm *fakeModel, mgr *tools.Manager, sess *session.Store) *Assistant {
	t.Helper()
	a, err := New(context.Background(), &Config{
		ChatModel: fm,
		Tools:     mgr,
		Sessions:  sess,
	})
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	return a
}

func Test_Query_DirectAnswerWithoutTools(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("Paris is the capital of France.", nil), nil
	}}

	a := newAssistant(t, fm, newTestManager(t), nil)
	ans, err := a.Query(context.Background(), "What is the capital of France?", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.Text != "Paris is the capital of France." {
		t.Errorf("text: got %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("want no sources for a direct answer, got %+v", ans.Sources)
	}
}

func Test_Query_ToolRoundThenAnswer(t *testing.T) {
	t.Parallel()

	calls := 0
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		calls++
		if calls == 1 {
			msg := schema.AssistantMessage("", nil)
			msg.ToolCalls = []schema.ToolCall{{
				ID: "call-1",
				Function: schema.FunctionCall{
					Name:      "search_course_content",
					Arguments: `{"query":"composition","course_name":"Testing"}`,
				},
			}}
			return msg, nil
		}

		// Second call must carry the tool result back to the model.
		last := msgs[len(msgs)-1]
		if last.Role != schema.Tool || last.ToolCallID != "call-1" {
			t.Errorf("tool result not relayed: role=%s id=%s", last.Role, last.ToolCallID)
		}
		if !strings.Contains(last.Content, "Composition lets tests") {
			t.Errorf("tool content missing: %q", last.Content)
		}
		return schema.AssistantMessage("Composition builds fixtures from reusable parts.", nil), nil
	}}

	sess := session.NewStore(2)
	id := sess.Create()
	a := newAssistant(t, fm, newTestManager(t), sess)

	ans, err := a.Query(context.Background(), "What does the Testing course say about composition?", id)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(ans.Text, "Composition builds fixtures") {
		t.Errorf("text: got %q", ans.Text)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("want 1 source, got %d", len(ans.Sources))
	}
	src := ans.Sources[0]
	if src.CourseTitle != "Intro to Testing" {
		t.Errorf("source course: got %q", src.CourseTitle)
	}
	if src.LessonNumber == nil || *src.LessonNumber != 2 {
		t.Errorf("source lesson: got %v", src.LessonNumber)
	}
	if src.Link != "https://example.com/testing/2" {
		t.Errorf("source link: got %q", src.Link)
	}

	// The completed exchange must be recorded in the session.
	h := sess.History(id)
	if len(h) != 1 || !strings.Contains(h[0].AssistantMessage, "Composition builds fixtures") {
		t.Errorf("session history: got %+v", h)
	}
}

func Test_Query_RoundLimitForcesAnswer(t *testing.T) {
	t.Parallel()

	boundCalls := 0
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		if bound {
			boundCalls++
			msg := schema.AssistantMessage("", nil)
			msg.ToolCalls = []schema.ToolCall{{
				ID: "call-n",
				Function: schema.FunctionCall{
					Name:      "search_course_content",
					Arguments: `{"query":"composition"}`,
				},
			}}
			return msg, nil
		}
		return schema.AssistantMessage("Final forced answer.", nil), nil
	}}

	a := newAssistant(t, fm, newTestManager(t), nil)
	ans, err := a.Query(context.Background(), "keep searching", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if boundCalls != DefaultMaxToolRounds {
		t.Errorf("want %d tool rounds, got %d", DefaultMaxToolRounds, boundCalls)
	}
	if ans.Text != "Final forced answer." {
		t.Errorf("text: got %q", ans.Text)
	}
	// Only the last round's sources survive, no matter how many rounds ran.
	if len(ans.Sources) != 1 {
		t.Errorf("want 1 source, got %d: %+v", len(ans.Sources), ans.Sources)
	}
}

func Test_Query_LatestToolCallSourcesWin(t *testing.T) {
	t.Parallel()

	vs := vectorstore.NewMemoryStore(hashEmbedder{})
	courses := []struct {
		course *docparse.Course
		chunk  string
	}{
		{
			course: &docparse.Course{
				Title: "Intro to Testing",
				Link:  "https://example.com/testing",
				Lessons: []docparse.Lesson{
					{Number: 2, Title: "Composition", Link: "https://example.com/testing/2"},
				},
			},
			chunk: "Composition lets tests build complex fixtures from small reusable parts.",
		},
		{
			course: &docparse.Course{
				Title: "Advanced Retrieval",
				Link:  "https://example.com/retrieval",
				Lessons: []docparse.Lesson{
					{Number: 1, Title: "Ranking", Link: "https://example.com/retrieval/1"},
				},
			},
			chunk: "Ranking orders candidate passages by relevance before generation.",
		},
	}
	for _, c := range courses {
		chunks := []vectorstore.Chunk{{
			Text:         c.chunk,
			CourseTitle:  c.course.Title,
			LessonNumber: intPtr(c.course.Lessons[0].Number),
			ChunkIndex:   0,
		}}
		if err := vs.AddCourse(context.Background(), c.course, chunks); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	mgr := tools.NewManager(tools.NewSearchTool(vs, 5))

	round := 0
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		if !bound {
			return schema.AssistantMessage("Ranking orders passages by relevance.", nil), nil
		}
		round++
		msg := schema.AssistantMessage("", nil)
		args := `{"query":"composition","course_name":"Intro to Testing"}`
		if round == 2 {
			args = `{"query":"ranking relevance","course_name":"Advanced Retrieval"}`
		}
		msg.ToolCalls = []schema.ToolCall{{
			ID:       "call-" + strings.Repeat("i", round),
			Function: schema.FunctionCall{Name: "search_course_content", Arguments: args},
		}}
		return msg, nil
	}}

	a := newAssistant(t, fm, mgr, nil)
	ans, err := a.Query(context.Background(), "Which course covers ranking?", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("want the latest search's single source, got %d: %+v", len(ans.Sources), ans.Sources)
	}
	src := ans.Sources[0]
	if src.CourseTitle != "Advanced Retrieval" {
		t.Errorf("earlier round's sources were not replaced: got %q", src.CourseTitle)
	}
	if src.LessonNumber == nil || *src.LessonNumber != 1 {
		t.Errorf("source lesson: got %v", src.LessonNumber)
	}
}

func Test_Query_ToolFailureRelayedToModel(t *testing.T) {
	t.Parallel()

	calls := 0
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		calls++
		if calls == 1 {
			msg := schema.AssistantMessage("", nil)
			msg.ToolCalls = []schema.ToolCall{{
				ID:       "call-bad",
				Function: schema.FunctionCall{Name: "no_such_tool", Arguments: `{}`},
			}}
			return msg, nil
		}
		last := msgs[len(msgs)-1]
		if !strings.Contains(last.Content, "Tool execution failed") {
			t.Errorf("failure not relayed as tool result: %q", last.Content)
		}
		return schema.AssistantMessage("I could not look that up.", nil), nil
	}}

	a := newAssistant(t, fm, newTestManager(t), nil)
	ans, err := a.Query(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.Text != "I could not look that up." {
		t.Errorf("text: got %q", ans.Text)
	}
}

func Test_Query_ModelFailureWrapped(t *testing.T) {
	t.Parallel()

	backendDown := errors.New("connection refused")
	fm := &fakeModel{generate: func(bool, []*schema.Message) (*schema.Message, error) {
		return nil, backendDown
	}}

	a := newAssistant(t, fm, newTestManager(t), nil)
	_, err := a.Query(context.Background(), "q", "")

	var genErr *GenerationServiceError
	if !errors.As(err, &genErr) {
		t.Fatalf("want *GenerationServiceError, got %v", err)
	}
	if !errors.Is(err, backendDown) {
		t.Errorf("want wrapped backend error, got %v", err)
	}
}

func Test_Query_HistoryInjected(t *testing.T) {
	t.Parallel()

	var sawHistory bool
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		for _, m := range msgs {
			if m.Role == schema.Assistant && strings.Contains(m.Content, "prior answer") {
				sawHistory = true
			}
		}
		return schema.AssistantMessage("follow-up answer", nil), nil
	}}

	sess := session.NewStore(2)
	id := sess.Create()
	sess.AddExchange(id, "prior question", "prior answer")

	a := newAssistant(t, fm, newTestManager(t), sess)
	if _, err := a.Query(context.Background(), "follow-up", id); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !sawHistory {
		t.Error("prior exchange was not injected into the model context")
	}
}

func Test_Query_SystemPromptFirst(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		if len(msgs) == 0 || msgs[0].Role != schema.System {
			t.Errorf("first message is not the system prompt: %+v", msgs)
		}
		if last := msgs[len(msgs)-1]; last.Role != schema.User {
			t.Errorf("last message is not the user query: %+v", last)
		}
		return schema.AssistantMessage("ok", nil), nil
	}}

	a := newAssistant(t, fm, newTestManager(t), nil)
	if _, err := a.Query(context.Background(), "q", ""); err != nil {
		t.Fatalf("query: %v", err)
	}
}

func Test_Query_IngestedCourseAnsweredWithSource(t *testing.T) {
	t.Parallel()

	doc := `Course Title: Intro to Testing
Course Link: https://example.com/testing
Course Instructor: Jordan Li

Lesson 0: Getting Started
Lesson Link: https://example.com/testing/0
Unit tests verify behavior. Integration tests verify composition.
`
	path := filepath.Join(t.TempDir(), "intro_to_testing.txt")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}

	vs := vectorstore.NewMemoryStore(hashEmbedder{})
	catalog, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer catalog.Close()

	pipeline, err := ingestion.NewPipeline(vs, catalog, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, _, err := pipeline.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	mgr := tools.NewManager(
		tools.NewSearchTool(vs, 5),
		tools.NewOutlineTool(vs, catalog),
	)

	calls := 0
	fm := &fakeModel{generate: func(bound bool, msgs []*schema.Message) (*schema.Message, error) {
		calls++
		if calls == 1 {
			msg := schema.AssistantMessage("", nil)
			msg.ToolCalls = []schema.ToolCall{{
				ID: "call-search",
				Function: schema.FunctionCall{
					Name:      "search_course_content",
					Arguments: `{"query":"which tests verify composition","course_name":"Intro to Testing"}`,
				},
			}}
			return msg, nil
		}
		last := msgs[len(msgs)-1]
		if !strings.Contains(last.Content, "Integration tests verify composition.") {
			t.Errorf("ingested lesson text not retrieved: %q", last.Content)
		}
		return schema.AssistantMessage("Integration tests verify composition.", nil), nil
	}}

	a := newAssistant(t, fm, mgr, nil)
	ans, err := a.Query(context.Background(), "Which tests verify composition?", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(ans.Text, "composition") {
		t.Errorf("answer does not mention composition: %q", ans.Text)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("want 1 source, got %d: %+v", len(ans.Sources), ans.Sources)
	}
	src := ans.Sources[0]
	if src.CourseTitle != "Intro to Testing" {
		t.Errorf("source course: got %q", src.CourseTitle)
	}
	if src.LessonNumber == nil || *src.LessonNumber != 0 {
		t.Errorf("source lesson: got %v", src.LessonNumber)
	}
}

func Test_New_RequiresChatModel(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), &Config{}); err == nil {
		t.Error("want error for nil ChatModel, got nil")
	}
}
