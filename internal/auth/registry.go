package auth

import (
	"errors"
	"sync"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
)

// ErrCredentialNotFound indicates no credential is registered for a workspace.
// There is deliberately no fallback source: a missing credential must surface
// to the user instead of being silently recovered from the environment.
var ErrCredentialNotFound = errors.New("auth: no credential registered for workspace")

// CredentialRegistry holds the validated model credential per workspace for
// the lifetime of the process. Set on successful validation, cleared on
// logout; nothing is persisted.
type CredentialRegistry struct {
	mu    sync.RWMutex
	creds map[string]gateway.Credential
}

// NewCredentialRegistry constructs an empty registry.
func NewCredentialRegistry() *CredentialRegistry {
	return &CredentialRegistry{creds: make(map[string]gateway.Credential)}
}

// Set registers the credential for a workspace.
func (r *CredentialRegistry) Set(workspaceID string, cred gateway.Credential) {
	if workspaceID == "" || cred.IsZero() {
		return
	}
	r.mu.Lock()
	r.creds[workspaceID] = cred
	r.mu.Unlock()
}

// Get returns the credential for a workspace.
func (r *CredentialRegistry) Get(workspaceID string) (gateway.Credential, error) {
	r.mu.RLock()
	cred, ok := r.creds[workspaceID]
	r.mu.RUnlock()
	if !ok {
		return "", ErrCredentialNotFound
	}
	return cred, nil
}

// Clear removes the credential for a workspace.
func (r *CredentialRegistry) Clear(workspaceID string) {
	r.mu.Lock()
	delete(r.creds, workspaceID)
	r.mu.Unlock()
}
