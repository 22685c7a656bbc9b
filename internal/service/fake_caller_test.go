package service

import (
	"context"
	"net/url"
	"sync"

	"sms-activation-tracker/internal/repository"
	"sms-activation-tracker/pkg/logger"
)

type recordedCall struct {
	action string
	params url.Values
}

// fakeCaller answers each action with a canned body or error
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errors    map[string]error
	calls     []recordedCall
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

func (f *fakeCaller) on(action, body string) *fakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[action] = body
	delete(f.errors, action)
	return f
}

func (f *fakeCaller) fail(action string, err error) *fakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[action] = err
	return f
}

func (f *fakeCaller) Call(_ context.Context, action string, params url.Values) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{action: action, params: params})
	if err, ok := f.errors[action]; ok {
		return "", err
	}
	return f.responses[action], nil
}

func (f *fakeCaller) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call.action == action {
			n++
		}
	}
	return n
}

func (f *fakeCaller) last(action string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].action == action {
			return f.calls[i].params
		}
	}
	return nil
}

func newTestService(caller *fakeCaller) (*ActivationService, *repository.ActivationStore) {
	store := repository.NewActivationStore(repository.NewMemoryKV())
	return NewActivationService(caller, store, logger.Discard()), store
}
