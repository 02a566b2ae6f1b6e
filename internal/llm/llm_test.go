package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

type fakeCaller struct {
	responses []string
	errs      []error
	prompts   []string
	i         int
}

func (f *fakeCaller) GenerateJSON(_ context.Context, prompt string) (string, error) {
	idx := f.i
	f.i++
	f.prompts = append(f.prompts, prompt)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", nil
}

func (f *fakeCaller) ModelName() string { return "test-model" }

type assertErr string

func (e assertErr) Error() string { return string(e) }

func noBackoff(int) time.Duration { return 0 }

func testSchema(t *testing.T) *fields.Schema {
	t.Helper()
	s, err := fields.Default().Schema([]string{fields.KeyMass, fields.KeyBIRADS})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestStripCodeFences(t *testing.T) {
	in := "```json\n{\"MASS\":\"Yes\"}\n```"
	if got := stripCodeFences(in); got != "{\"MASS\":\"Yes\"}" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := stripCodeFences("  {}  "); got != "{}" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestBackoffDelay(t *testing.T) {
	if backoffDelay(1) != time.Second {
		t.Fatal("attempt 1 should be 1s")
	}
	if backoffDelay(2) != 2*time.Second {
		t.Fatal("attempt 2 should be 2s")
	}
	if backoffDelay(5) != 4*time.Second {
		t.Fatal("later attempts should be 4s")
	}
}

func TestClassifyTransportError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want failureClass
	}{
		{assertErr("failed after 5 retries while waiting 4 seconds"), failureServer},
		{assertErr("status code: 400 bad request"), failureClient},
		{assertErr("status=500 upstream error"), failureServer},
		{assertErr("status: 429 too many requests"), failureRateLimit},
		{assertErr("status: 700 rate limit exceeded"), failureRateLimit},
		{assertErr("status code: 99999 bad request"), failureServer},
		{context.DeadlineExceeded, failureTimeout},
		{&anthropic.Error{StatusCode: 401}, failureClient},
		{&anthropic.Error{StatusCode: 529}, failureServer},
	} {
		if got := classifyTransportError(tc.err); got != tc.want {
			t.Fatalf("classify(%v) got %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestExtractAcceptsMarkdownFences(t *testing.T) {
	caller := &fakeCaller{responses: []string{"```json\n{\"MASS\":\"Yes\",\"BIRADS\":4}\n```"}}
	res, err := NewClient(caller).Extract(context.Background(), "report", testSchema(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res[fields.KeyMass].Is(fields.Yes) {
		t.Fatalf("MASS = %v", res[fields.KeyMass])
	}
	if n, _ := res[fields.KeyBIRADS].IntValue(); n != 4 {
		t.Fatalf("BIRADS = %v", res[fields.KeyBIRADS])
	}
	if !strings.Contains(caller.prompts[0], `"additionalProperties":false`) {
		t.Fatal("schema should be appended to the prompt")
	}
}

func TestExtractRetriesMalformedWithFeedback(t *testing.T) {
	caller := &fakeCaller{responses: []string{"not json", "{\"MASS\":\"No\",\"BIRADS\":null}"}}
	res, err := NewClient(caller, WithBackoff(noBackoff)).Extract(context.Background(), "report", testSchema(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if caller.i != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.i)
	}
	if !strings.Contains(caller.prompts[1], "not valid JSON") {
		t.Fatalf("second prompt lacks feedback: %q", caller.prompts[1])
	}
	if !res[fields.KeyBIRADS].IsNull() {
		t.Fatalf("BIRADS = %v", res[fields.KeyBIRADS])
	}
}

func TestExtractFinalMalformed(t *testing.T) {
	caller := &fakeCaller{responses: []string{"nope", "", "still nope"}}
	_, err := NewClient(caller, WithBackoff(noBackoff)).Extract(context.Background(), "report", testSchema(t))
	if !errors.Is(err, fields.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if caller.i != 3 {
		t.Fatalf("expected 3 calls, got %d", caller.i)
	}
}

func TestExtractFinalSchemaViolationKeepsPartial(t *testing.T) {
	bad := "{\"MASS\":\"maybe\",\"BIRADS\":5}"
	caller := &fakeCaller{responses: []string{bad, bad}}
	res, err := NewClient(caller, WithAttempts(2), WithBackoff(noBackoff)).Extract(context.Background(), "report", testSchema(t))
	var sv *fields.SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected schema violation, got %v", err)
	}
	if !sv.Violated(fields.KeyMass) || sv.Violated(fields.KeyBIRADS) {
		t.Fatalf("unexpected violations: %v", sv)
	}
	if n, _ := res[fields.KeyBIRADS].IntValue(); n != 5 {
		t.Fatalf("partial BIRADS = %v", res[fields.KeyBIRADS])
	}
	if !strings.Contains(caller.prompts[1], "failed validation") {
		t.Fatalf("second prompt lacks feedback: %q", caller.prompts[1])
	}
}

func TestExtractRetriesServerErrors(t *testing.T) {
	caller := &fakeCaller{
		errs:      []error{assertErr("status code: 503 overloaded"), nil},
		responses: []string{"", "{\"MASS\":\"Yes\",\"BIRADS\":2}"},
	}
	_, err := NewClient(caller, WithBackoff(noBackoff)).Extract(context.Background(), "report", testSchema(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if caller.i != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.i)
	}
}

func TestExtractClientErrorIsTransport(t *testing.T) {
	caller := &fakeCaller{errs: []error{assertErr("status code: 401 unauthorized")}}
	_, err := NewClient(caller, WithBackoff(noBackoff)).Extract(context.Background(), "report", testSchema(t))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if caller.i != 1 {
		t.Fatalf("client errors must not retry, got %d calls", caller.i)
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	caller := &fakeCaller{errs: []error{context.Canceled}}
	_, err := NewClient(caller).Extract(ctx, "report", testSchema(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeMessager struct {
	params anthropic.MessageNewParams
	text   string
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.text}}}, nil
}

func TestAnthropicCallerUsesModelAndJoinsText(t *testing.T) {
	fake := &fakeMessager{text: "{\"MASS\":\"No\"}"}
	prev := newAnthropicClient
	newAnthropicClient = func(string) AnthropicMessager { return fake }
	defer func() { newAnthropicClient = prev }()

	c, err := NewAnthropicCaller("key", "", 0)
	if err != nil {
		t.Fatalf("NewAnthropicCaller: %v", err)
	}
	if c.ModelName() != DefaultModel {
		t.Fatalf("model = %q", c.ModelName())
	}
	out, err := c.GenerateJSON(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out != fake.text {
		t.Fatalf("unexpected output %q", out)
	}
	if fake.params.MaxTokens != defaultMaxTokens {
		t.Fatalf("max tokens = %d", fake.params.MaxTokens)
	}
}

func TestNewAnthropicCallerFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicCallerFromEnv(); err == nil {
		t.Fatal("expected error without ANTHROPIC_API_KEY")
	}
}
