package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptlab/internal/configstore"
	"promptlab/internal/failure"
	"promptlab/internal/modes"
	"promptlab/internal/upstream/gemini"
)

type fakeGenerator struct {
	resp   gemini.GenerateContentResponse
	err    error
	calls  int
	apiKey string
	req    gemini.GenerateContentRequest
}

func (f *fakeGenerator) GenerateContent(_ context.Context, apiKey string, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error) {
	f.calls++
	f.apiKey = apiKey
	f.req = req
	return f.resp, f.err
}

type fakeSource struct {
	cfg configstore.Configuration
	ok  bool
}

func (f fakeSource) Load(context.Context) (configstore.Configuration, bool) { return f.cfg, f.ok }

func configured() fakeSource {
	return fakeSource{cfg: configstore.Configuration{APIKey: "key"}, ok: true}
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var chunks []string
	for c := range s.Chunks() {
		chunks = append(chunks, c)
	}
	return chunks
}

func sentText(f *fakeGenerator) string {
	return f.req.Contents[0].Parts[0].Text
}

func TestOptimizeRejectsBlankPromptWithoutCallingUpstream(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		gen := &fakeGenerator{}
		svc := New(gen, configured(), nil)

		_, err := svc.Optimize(context.Background(), Input{Prompt: prompt, Mode: "clarity"})

		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.ValidationError))
		assert.Zero(t, gen.calls)
	}
}

func TestOptimizeRequiresConfiguration(t *testing.T) {
	sources := map[string]fakeSource{
		"absent":    {},
		"empty key": {cfg: configstore.Configuration{APIKey: "  "}, ok: true},
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{}
			svc := New(gen, src, nil)

			_, err := svc.Optimize(context.Background(), Input{Prompt: "Tell me about cats"})

			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.NotConfigured))
			assert.Zero(t, gen.calls)
		})
	}
}

func TestOptimizeSendsCatalogInstructionVerbatim(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: "ok"}}
	svc := New(gen, configured(), nil, WithStreamDelay(0))

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "Tell me about cats", Mode: "clarity"})
	require.NoError(t, err)
	_, err = stream.Wait()
	require.NoError(t, err)

	clarity, _ := modes.Builtin().InstructionFor("clarity")
	assert.Equal(t, clarity, stream.Request().EffectiveInstruction)
	assert.Equal(t, "clarity", stream.Request().ModeID)
	assert.True(t, strings.HasPrefix(sentText(gen), clarity+"\n\n"))
	assert.Contains(t, sentText(gen), `Original prompt to optimize: "Tell me about cats"`)
	assert.Equal(t, "key", gen.apiKey)
	assert.Equal(t, Temperature, gen.req.GenerationConfig.Temperature)
	assert.Equal(t, MaxOutputTokens, gen.req.GenerationConfig.MaxOutputTokens)
}

func TestCustomStyleTakesPrecedenceOverMode(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: "ok"}}
	svc := New(gen, configured(), nil, WithStreamDelay(0))

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "p", Mode: "creative", CustomStyle: "Make it rhyme"})
	require.NoError(t, err)

	creative, _ := modes.Builtin().InstructionFor("creative")
	assert.Equal(t, "Make it rhyme", stream.Request().EffectiveInstruction)
	assert.NotContains(t, sentText(gen), creative)
	assert.True(t, strings.HasPrefix(sentText(gen), "Make it rhyme\n\n"))
}

func TestResolveInstruction(t *testing.T) {
	svc := New(&fakeGenerator{}, configured(), nil)
	clarity, _ := modes.Builtin().InstructionFor("clarity")
	depth, _ := modes.Builtin().InstructionFor("depth")

	tests := []struct {
		name            string
		style, mode     string
		wantInstruction string
		wantMode        string
	}{
		{name: "custom only", style: "be brief", wantInstruction: "be brief", wantMode: CustomModeID},
		{name: "custom with mode", style: "be brief", mode: "depth", wantInstruction: "be brief", wantMode: "depth"},
		{name: "custom with unknown mode", style: "be brief", mode: "attacker-0", wantInstruction: "be brief", wantMode: CustomModeID},
		{name: "mode", mode: "depth", wantInstruction: depth, wantMode: "depth"},
		{name: "unknown mode", mode: "nope", wantInstruction: clarity, wantMode: "clarity"},
		{name: "nothing", wantInstruction: clarity, wantMode: "clarity"},
		{name: "blank style", style: "   ", mode: "depth", wantInstruction: depth, wantMode: "depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instruction, mode := svc.ResolveInstruction(tt.style, tt.mode)
			assert.Equal(t, tt.wantInstruction, instruction)
			assert.Equal(t, tt.wantMode, mode)
		})
	}
}

func TestResolveInstructionUsesCatalogDefault(t *testing.T) {
	catalog, err := modes.New([]modes.Mode{{ID: "terse", Instruction: "Short."}}, nil, "terse")
	require.NoError(t, err)
	svc := New(&fakeGenerator{}, configured(), catalog)

	instruction, mode := svc.ResolveInstruction("", "clarity")

	assert.Equal(t, "Short.", instruction)
	assert.Equal(t, "terse", mode)
}

func TestStreamReconstructsText(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: "ABC"}}
	svc := New(gen, configured(), nil, WithStreamDelay(time.Millisecond))

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "p"})
	require.NoError(t, err)

	chunks := collect(t, stream)
	result, err := stream.Wait()

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, chunks)
	assert.Equal(t, "ABC", result.Text)
}

func TestStreamEmitsRunes(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: "héllo ✓"}}
	svc := New(gen, configured(), nil, WithStreamDelay(0))

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "p"})
	require.NoError(t, err)

	chunks := collect(t, stream)
	assert.Len(t, chunks, 7)
	assert.Equal(t, "héllo ✓", strings.Join(chunks, ""))
}

func TestStreamCancelStopsEmission(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: strings.Repeat("x", 1000)}}
	svc := New(gen, configured(), nil, WithStreamDelay(5*time.Millisecond))

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "p"})
	require.NoError(t, err)

	<-stream.Chunks()
	stream.Cancel()

	_, err = stream.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(collect(t, stream)), 999)

	stream.Cancel()
}

func TestStreamStopsWhenContextCancelled(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.GenerateContentResponse{Text: strings.Repeat("y", 1000)}}
	svc := New(gen, configured(), nil, WithStreamDelay(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := svc.Optimize(ctx, Input{Prompt: "p"})
	require.NoError(t, err)
	cancel()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after context cancellation")
	}
	_, err = stream.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeUpstreamErrorStreamsNothing(t *testing.T) {
	gen := &fakeGenerator{err: &gemini.Error{StatusCode: 500, Body: "oops"}}
	svc := New(gen, configured(), nil)

	stream, err := svc.Optimize(context.Background(), Input{Prompt: "p"})

	require.Error(t, err)
	assert.Nil(t, stream)
	assert.True(t, failure.Is(err, failure.UpstreamError))
	assert.Equal(t, 500, failure.StatusCode(err))
	assert.Equal(t, 1, gen.calls)
}

func TestOptimizeMalformedResponseUsesFallbackMessage(t *testing.T) {
	gen := &fakeGenerator{err: errors.Join(gemini.ErrMalformedResponse, errors.New("missing candidates"))}
	svc := New(gen, configured(), nil)

	_, err := svc.Optimize(context.Background(), Input{Prompt: "p"})

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.UpstreamMalformed))
	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FallbackMessage, fe.Message)
}

func TestOptimizeTransportErrorIsUpstreamError(t *testing.T) {
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	svc := New(gen, configured(), nil)

	_, err := svc.Optimize(context.Background(), Input{Prompt: "p"})

	assert.True(t, failure.Is(err, failure.UpstreamError))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
