package proxy

import (
	"errors"
	"fmt"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// Dispatch failure kinds. Match them with errors.Is.
var (
	ErrProviderNotConfigured  = errors.New("provider not configured")
	ErrProviderNotImplemented = errors.New("provider not implemented")
	ErrProviderUpstream       = errors.New("provider upstream error")
)

// DispatchError is returned by Dispatcher.Dispatch. Its message is the
// client-facing detail string.
type DispatchError struct {
	Provider models.AIProvider
	Kind     error
	Detail   string
	Err      error
}

func (e *DispatchError) Error() string {
	return e.Detail
}

func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UpstreamError describes a failed call to a provider API.
type UpstreamError struct {
	StatusCode int // zero when the request never got a response
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

func notConfigured(p models.AIProvider) error {
	return &DispatchError{
		Provider: p,
		Kind:     ErrProviderNotConfigured,
		Detail:   fmt.Sprintf("Provider %s not configured or not supported", p),
	}
}

func notImplemented(p models.AIProvider, label string) error {
	return &DispatchError{
		Provider: p,
		Kind:     ErrProviderNotImplemented,
		Detail:   fmt.Sprintf("%s provider not implemented yet", label),
	}
}

func upstreamFailure(p models.AIProvider, err error) error {
	return &DispatchError{
		Provider: p,
		Kind:     ErrProviderUpstream,
		Detail:   err.Error(),
		Err:      err,
	}
}
