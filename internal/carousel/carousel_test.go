package carousel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWidget cycles through refs. When wrap is false the next control is
// disabled on the last slide.
type fakeWidget struct {
	refs       []string
	pos        int
	wrap       bool
	stuck      bool
	nextErr    error
	currentErr error
	nextCalls  int
}

func (f *fakeWidget) Current(ctx context.Context) (string, error) {
	if f.currentErr != nil {
		return "", f.currentErr
	}
	if len(f.refs) == 0 {
		return "", nil
	}
	return f.refs[f.pos], nil
}

func (f *fakeWidget) Next(ctx context.Context) error {
	f.nextCalls++
	if f.nextErr != nil {
		return f.nextErr
	}
	if f.pos == len(f.refs)-1 && !f.wrap {
		return ErrNextUnavailable
	}
	if !f.stuck {
		f.pos = (f.pos + 1) % len(f.refs)
	}
	return nil
}

func (f *fakeWidget) WaitChange(ctx context.Context, prev string) error {
	if f.refs[f.pos] == prev {
		return ErrNoChange
	}
	return nil
}

type recorder struct {
	slides []Slide
	fail   map[int]bool
}

func (r *recorder) capture(ctx context.Context, s Slide) error {
	r.slides = append(r.slides, s)
	if r.fail[s.Page] {
		return errors.New("download failed")
	}
	return nil
}

func (r *recorder) refs() []string {
	out := make([]string, 0, len(r.slides))
	for _, s := range r.slides {
		out = append(out, s.Ref)
	}
	return out
}

func TestTraverseWrapAroundStopsOnRepeat(t *testing.T) {
	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg", "c.jpg"}, wrap: true}
	rec := &recorder{}

	res := Traverse(context.Background(), w, rec.capture, Options{Journal: 1})

	assert.Equal(t, StopRepeated, res.Reason)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Captured)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, rec.refs())
	for i, s := range rec.slides {
		assert.Equal(t, i+1, s.Page)
		assert.Equal(t, 1, s.Journal)
	}
}

func TestTraverseDisabledNext(t *testing.T) {
	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg", "c.jpg"}}
	rec := &recorder{}

	res := Traverse(context.Background(), w, rec.capture, Options{Journal: 2})

	assert.Equal(t, StopNextUnavailable, res.Reason)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Captured)
	assert.Equal(t, 3, res.Iterations)
}

func TestTraverseMaxPages(t *testing.T) {
	refs := make([]string, 50)
	for i := range refs {
		refs[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	w := &fakeWidget{refs: refs, wrap: true}
	rec := &recorder{}

	res := Traverse(context.Background(), w, rec.capture, Options{MaxPages: 5})

	assert.Equal(t, StopMaxPages, res.Reason)
	assert.Equal(t, 5, res.Captured)
	assert.Equal(t, 4, w.nextCalls)

	w = &fakeWidget{refs: refs, wrap: true}
	res = Traverse(context.Background(), w, (&recorder{}).capture, Options{})
	assert.Equal(t, StopMaxPages, res.Reason)
	assert.Equal(t, DefaultMaxPages, res.Captured)
}

func TestTraverseNoReference(t *testing.T) {
	res := Traverse(context.Background(), &fakeWidget{}, (&recorder{}).capture, Options{})

	assert.Equal(t, StopNoReference, res.Reason)
	assert.Equal(t, 0, res.Captured)
	assert.Equal(t, 1, res.Iterations)
}

func TestTraverseNoChange(t *testing.T) {
	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg"}, wrap: true, stuck: true}
	res := Traverse(context.Background(), w, (&recorder{}).capture, Options{})

	assert.Equal(t, StopNoChange, res.Reason)
	assert.Equal(t, 1, res.Captured)
}

func TestTraverseCaptureFailureContinues(t *testing.T) {
	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg", "c.jpg"}}
	rec := &recorder{fail: map[int]bool{2: true}}

	res := Traverse(context.Background(), w, rec.capture, Options{})

	assert.Equal(t, StopNextUnavailable, res.Reason)
	assert.Equal(t, 2, res.Captured)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Pages)
	assert.Len(t, rec.slides, 3)
}

func TestTraverseWidgetErrors(t *testing.T) {
	boom := errors.New("target closed")

	res := Traverse(context.Background(), &fakeWidget{currentErr: boom}, (&recorder{}).capture, Options{})
	assert.Equal(t, StopError, res.Reason)
	assert.ErrorIs(t, res.Err, boom)

	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg"}, nextErr: boom}
	res = Traverse(context.Background(), w, (&recorder{}).capture, Options{})
	assert.Equal(t, StopError, res.Reason)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 1, res.Captured)
}

func TestTraverseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Traverse(ctx, &fakeWidget{refs: []string{"a.jpg"}}, (&recorder{}).capture, Options{})
	assert.Equal(t, StopCanceled, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestTraverseNeverCapturesSameRefTwice(t *testing.T) {
	w := &fakeWidget{refs: []string{"a.jpg", "b.jpg", "a.jpg", "c.jpg"}, wrap: true}
	rec := &recorder{}

	Traverse(context.Background(), w, rec.capture, Options{})

	seen := map[string]bool{}
	for _, ref := range rec.refs() {
		require.False(t, seen[ref], "ref %s captured twice", ref)
		seen[ref] = true
	}
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, rec.refs())
}

func TestTraverseSharedSeenAcrossJournals(t *testing.T) {
	seen := make(map[string]struct{})
	rec := &recorder{}

	first := Traverse(context.Background(), &fakeWidget{refs: []string{"a.jpg", "b.jpg"}}, rec.capture, Options{Journal: 1, Seen: seen})
	second := Traverse(context.Background(), &fakeWidget{refs: []string{"a.jpg", "b.jpg"}}, rec.capture, Options{Journal: 2, Seen: seen})

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, rec.refs())
	assert.Equal(t, 2, first.Captured)
	assert.Equal(t, 0, second.Captured)
	assert.Equal(t, StopRepeated, second.Reason)
	assert.Len(t, seen, 2)
}

func TestTraverseWithoutSharedSeen(t *testing.T) {
	rec := &recorder{}

	Traverse(context.Background(), &fakeWidget{refs: []string{"1", "2"}}, rec.capture, Options{Journal: 1})
	Traverse(context.Background(), &fakeWidget{refs: []string{"1", "2"}}, rec.capture, Options{Journal: 2})

	assert.Equal(t, []string{"1", "2", "1", "2"}, rec.refs())
}
