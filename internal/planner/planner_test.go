package planner

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/tool"
)

func silentLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func testCaps() []tool.Definition {
	return []tool.Definition{
		{Name: "email.fetch", Description: "fetch mail", InputSchema: "{}", SideEffect: tool.SideEffectReadOnly},
		{Name: "email.send", Description: "send mail", InputSchema: "{}", SideEffect: tool.SideEffectIrreversible},
		{Name: "text.summarize", Description: "summarize", InputSchema: "{}", SideEffect: tool.SideEffectReadOnly},
		{Name: "text.analyze", Description: "analyze", InputSchema: "{}", SideEffect: tool.SideEffectReadOnly},
	}
}

func planClient(content string) llm.Client {
	return &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: content}, nil
		},
	}
}

func TestPlanEmptyDescriptionAsksUser(t *testing.T) {
	p := New(planClient("unused"), "m", silentLog())

	plan, err := p.Plan(context.Background(), domain.TaskRequest{Description: "   "}, testCaps())
	require.NoError(t, err)
	assert.True(t, plan.IsAskUser())
}

func TestPlanZeroCapabilitiesAsksUser(t *testing.T) {
	p := New(planClient("unused"), "m", silentLog())

	plan, err := p.Plan(context.Background(), domain.TaskRequest{Description: "do a thing"}, nil)
	require.NoError(t, err)
	assert.True(t, plan.IsAskUser())
	assert.Contains(t, plan.Steps[0].Instruction, "do a thing")
}

func TestPlanParsesStepsAndStampsConfirmation(t *testing.T) {
	content := `Here is the plan:
{"steps":[
  {"instruction":"Fetch mail","capability":"email.fetch","args":{"query":""},"depends_on":[]},
  {"instruction":"Send the digest","capability":"email.send","args":{"to":"a@b.c","subject":"hi","body":"{step_0_result}"},"depends_on":[0]}
]}`
	p := New(planClient(content), "m", silentLog())

	plan, err := p.Plan(context.Background(), domain.TaskRequest{Description: "mail digest"}, testCaps())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.NotEmpty(t, plan.ID)
	assert.False(t, plan.Steps[0].RequiresConfirmation)
	assert.True(t, plan.Steps[1].RequiresConfirmation)
	assert.Equal(t, []int{0}, plan.Steps[1].DependsOn)
	assert.Equal(t, domain.StepPending, plan.Steps[0].Status)
}

func TestPlanRejectsForwardDependency(t *testing.T) {
	content := `{"steps":[
  {"instruction":"a","capability":"email.fetch","depends_on":[1]},
  {"instruction":"b","capability":"text.summarize","depends_on":[]}
]}`
	p := New(planClient(content), "m", silentLog())

	_, err := p.Plan(context.Background(), domain.TaskRequest{Description: "x"}, testCaps())
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "invalid dependency")
}

func TestPlanRejectsUnknownCapability(t *testing.T) {
	content := `{"steps":[{"instruction":"a","capability":"teleport","depends_on":[]}]}`
	p := New(planClient(content), "m", silentLog())

	_, err := p.Plan(context.Background(), domain.TaskRequest{Description: "x"}, testCaps())
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "teleport")
}

func TestPlanUnparseableOutputFallsBack(t *testing.T) {
	p := New(planClient("I cannot produce JSON today."), "m", silentLog())

	plan, err := p.Plan(context.Background(), domain.TaskRequest{Description: "figure this out"}, testCaps())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "text.analyze", plan.Steps[0].Capability)
}

func TestPlanUnparseableWithoutAnalyzeErrors(t *testing.T) {
	caps := []tool.Definition{
		{Name: "email.fetch", SideEffect: tool.SideEffectReadOnly},
	}
	p := New(planClient("nope"), "m", silentLog())

	_, err := p.Plan(context.Background(), domain.TaskRequest{Description: "x"}, caps)
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
}

func TestPlanCompletionFailure(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider down")
		},
	}
	p := New(client, "m", silentLog())

	_, err := p.Plan(context.Background(), domain.TaskRequest{Description: "x"}, testCaps())
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.ErrorContains(t, err, "provider down")
}

func TestPlanMergesRedundantConsecutiveSteps(t *testing.T) {
	content := `{"steps":[
  {"instruction":"Fetch mail","capability":"email.fetch","args":{"query":"x"},"depends_on":[]},
  {"instruction":"Fetch mail again","capability":"email.fetch","args":{"query":"x"},"depends_on":[]},
  {"instruction":"Summarize","capability":"text.summarize","args":{"text":"{step_1_result}"},"depends_on":[1]}
]}`
	p := New(planClient(content), "m", silentLog())

	plan, err := p.Plan(context.Background(), domain.TaskRequest{Description: "digest"}, testCaps())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Contains(t, plan.Steps[0].Instruction, "again")
	// The summarize step's dependency follows the merged step's new index.
	assert.Equal(t, []int{0}, plan.Steps[1].DependsOn)
	assert.Equal(t, 1, plan.Steps[1].Index)
}

func TestParseStepsExtractsFromProse(t *testing.T) {
	steps, err := parseSteps("sure! ```json\n{\"steps\":[{\"instruction\":\"a\",\"capability\":\"c\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "c", steps[0].Capability)
}

func TestParseStepsNoJSON(t *testing.T) {
	_, err := parseSteps("no braces here")
	require.Error(t, err)
}

func TestBuildPlannerPromptListsCapabilities(t *testing.T) {
	prompt := buildPlannerPrompt(testCaps())
	assert.Contains(t, prompt, "email.send")
	assert.Contains(t, prompt, "irreversible")
	assert.Contains(t, prompt, `"steps"`)
}
