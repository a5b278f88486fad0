package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmorgan81/visualizer/internal/image"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	img []byte
	err error
}

// fakeImages replays outcomes in order and counts calls.
type fakeImages struct {
	outcomes []outcome
	calls    int
	tokens   []string
	params   []image.Params
}

func (f *fakeImages) Generate(_ context.Context, token string, params image.Params) ([]byte, error) {
	f.calls++
	f.tokens = append(f.tokens, token)
	f.params = append(f.params, params)
	if len(f.outcomes) == 0 {
		return nil, errors.New("no more outcomes")
	}
	next := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return next.img, next.err
}

func progress(events []notify.Event) []float64 {
	return lo.FilterMap(events, func(e notify.Event, _ int) (float64, bool) {
		return e.Progress, e.Kind == notify.KindProgress
	})
}

func ofKind(events []notify.Event, kind notify.Kind) []string {
	return lo.FilterMap(events, func(e notify.Event, _ int) (string, bool) {
		return e.Message, e.Kind == kind
	})
}

func TestGenerateCallsExactlyCount(t *testing.T) {
	for count := MinCount; count <= MaxCount; count++ {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			fake := &fakeImages{}
			for i := 0; i < count; i++ {
				fake.outcomes = append(fake.outcomes, lo.Ternary(i%2 == 0,
					outcome{err: &image.StatusError{StatusCode: http.StatusInternalServerError}},
					outcome{img: []byte{byte(i)}},
				))
			}

			out := New(fake).Generate(context.Background(), "hf_secret", Request{Prompt: "cat", Count: count})
			assert.Equal(t, count, fake.calls)
			assert.Len(t, out.Results, count)
		})
	}
}

func TestGeneratePreservesOrderAndReportsProgress(t *testing.T) {
	failure := &image.StatusError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}
	fake := &fakeImages{outcomes: []outcome{
		{img: []byte("one")},
		{err: failure},
		{img: []byte("three")},
	}}
	rec := &notify.Recorder{}
	ctx := notify.NewContext(context.Background(), rec)

	out := New(fake).Generate(ctx, "hf_secret", Request{Prompt: "cat", NegativePrompt: "dog", Count: 3})

	require.Len(t, out.Results, 3)
	assert.Equal(t, []byte("one"), out.Results[0].Image)
	assert.ErrorIs(t, out.Results[1].Err, failure)
	assert.Equal(t, []byte("three"), out.Results[2].Image)
	assert.Equal(t, [][]byte{[]byte("one"), []byte("three")}, out.Images())
	assert.Equal(t, 2, out.Succeeded())
	assert.Equal(t, 1, out.Failed())
	assert.Equal(t, StatusPartial, out.Status())

	events := rec.Events()
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3, 1}, progress(events), 1e-9)
	assert.Equal(t, []string{failure.Error()}, ofKind(events, notify.KindError))
	assert.Equal(t, []string{"Generated 2 of 3 images."}, ofKind(events, notify.KindWarning))
	assert.Empty(t, ofKind(events, notify.KindSuccess))

	assert.Equal(t, []string{"hf_secret", "hf_secret", "hf_secret"}, fake.tokens)
	for _, p := range fake.params {
		assert.Equal(t, image.Params{Prompt: "cat", NegativePrompt: "dog"}, p)
	}
}

func TestGenerateErrorReportedBeforeProgress(t *testing.T) {
	fake := &fakeImages{outcomes: []outcome{{err: image.ErrInvalidCredential}}}
	rec := &notify.Recorder{}

	New(fake).Generate(notify.NewContext(context.Background(), rec), "hf_secret", Request{Prompt: "cat", Count: 1})

	kinds := lo.Map(rec.Events(), func(e notify.Event, _ int) notify.Kind { return e.Kind })
	assert.Equal(t, []notify.Kind{notify.KindInfo, notify.KindError, notify.KindProgress, notify.KindWarning}, kinds)
}

func TestGenerateFinalNotice(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []outcome
		status   Status
		kind     notify.Kind
		message  string
	}{
		{
			name:     "all succeeded",
			outcomes: []outcome{{img: []byte("a")}, {img: []byte("b")}},
			status:   StatusSuccess,
			kind:     notify.KindSuccess,
			message:  "Your images have been generated successfully!",
		},
		{
			name:     "none succeeded",
			outcomes: []outcome{{err: image.ErrInvalidCredential}, {err: &image.NetworkError{Err: errors.New("reset")}}},
			status:   StatusFailed,
			kind:     notify.KindWarning,
			message:  "No images were generated.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notify.Recorder{}
			out := New(&fakeImages{outcomes: tt.outcomes}).Generate(
				notify.NewContext(context.Background(), rec), "hf_secret", Request{Prompt: "cat", Count: 2})

			assert.Equal(t, tt.status, out.Status())
			events := rec.Events()
			last := events[len(events)-1]
			assert.Equal(t, tt.kind, last.Kind)
			assert.Equal(t, tt.message, last.Message)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Request{Prompt: "cat", Count: 1}.Validate())
	assert.NoError(t, Request{Prompt: "cat", Count: 4}.Validate())
	assert.ErrorIs(t, Request{Prompt: "", Count: 1}.Validate(), ErrEmptyPrompt)
	assert.ErrorIs(t, Request{Prompt: "  \n", Count: 1}.Validate(), ErrEmptyPrompt)
	assert.ErrorIs(t, Request{Prompt: "cat", Count: 0}.Validate(), ErrInvalidCount)
	assert.ErrorIs(t, Request{Prompt: "cat", Count: 5}.Validate(), ErrInvalidCount)
}

func TestCheck(t *testing.T) {
	assert.ErrorIs(t, Check("", Request{Prompt: "", Count: 9}), image.ErrMissingCredential)
	assert.ErrorIs(t, Check("hf_secret", Request{Count: 1}), ErrEmptyPrompt)
	assert.NoError(t, Check("hf_secret", Request{Prompt: "cat", Count: 2}))
}

func TestCodeOf(t *testing.T) {
	tests := map[Code]error{
		CodeMissingCredential: image.ErrMissingCredential,
		CodeInvalidCredential: fmt.Errorf("wrapped: %w", image.ErrInvalidCredential),
		CodeUpstream:          &image.StatusError{StatusCode: 500},
		CodeNetwork:           &image.NetworkError{Err: context.DeadlineExceeded},
		CodeEmptyPrompt:       ErrEmptyPrompt,
		CodeInvalidCount:      ErrInvalidCount,
		CodeUnknown:           errors.New("mystery"),
	}
	for want, err := range tests {
		assert.Equal(t, want, CodeOf(err), "error %v", err)
	}
}
