package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/loic-ops/medical-transcription/adapters/memory"
	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

// fakeAPI is a TranscriptionAPI that counts calls and replays canned answers
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	templates      domain.Result
	templatesErr   error
	lookup         domain.Result
	lookupErr      error
	transcribe     domain.Result
	transcribeErr  error
	validate       domain.Result
	validateErr    error
	downloads      map[string][]byte
	lastTranscribe repositories.TranscribeInput
	lastValidate   repositories.ValidateInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int), downloads: make(map[string][]byte)}
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeAPI) ListTemplates(ctx context.Context) (domain.Result, error) {
	f.count("templates")
	return copyResult(f.templates), f.templatesErr
}

func (f *fakeAPI) Lookup(ctx context.Context, id string) (domain.Result, error) {
	f.count("lookup")
	return copyResult(f.lookup), f.lookupErr
}

func (f *fakeAPI) Transcribe(ctx context.Context, input repositories.TranscribeInput) (domain.Result, error) {
	f.count("transcribe")
	f.lastTranscribe = input
	return copyResult(f.transcribe), f.transcribeErr
}

func (f *fakeAPI) Validate(ctx context.Context, input repositories.ValidateInput) (domain.Result, error) {
	f.count("validate")
	f.lastValidate = input
	return copyResult(f.validate), f.validateErr
}

func (f *fakeAPI) Download(ctx context.Context, path string) ([]byte, error) {
	f.count("download")
	data, ok := f.downloads[path]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "API request error: HTTP 404", nil)
	}
	return data, nil
}

func copyResult(r domain.Result) domain.Result {
	if r == nil {
		return nil
	}
	out := make(domain.Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// flakyRepository fails every Update once failUpdates is set
type flakyRepository struct {
	*memory.TranscriptionRepository
	failUpdates bool
}

func (r *flakyRepository) Update(ctx context.Context, id string, patch entities.SessionPatch) error {
	if r.failUpdates {
		return errors.New("record store unavailable")
	}
	return r.TranscriptionRepository.Update(ctx, id, patch)
}

// recordingPublisher keeps every event it is given
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	return errors.New("broker down")
}

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) Render(ctx context.Context, session *entities.TranscriptionSession) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + session.Reference), nil
}
