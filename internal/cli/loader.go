package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/textilio/intake/internal/auth"
	"github.com/textilio/intake/internal/catalog"
	"github.com/textilio/intake/internal/engine"
	"github.com/textilio/intake/internal/order"
)

// conversationFile is the YAML shape of a conversation on disk.
type conversationFile struct {
	Messages []order.Message `yaml:"messages"`
}

// LoadConversation reads a YAML conversation file. Messages without an
// id are assigned a positional one so they stay addressable for edits.
func LoadConversation(path string) ([]order.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conversation file: %w", err)
	}

	var file conversationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse conversation file %s: %w", path, err)
	}
	if len(file.Messages) == 0 {
		return nil, fmt.Errorf("conversation file %s has no messages", path)
	}

	for i := range file.Messages {
		msg := &file.Messages[i]
		switch msg.Role {
		case order.RoleUser, order.RoleAssistant:
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return nil, fmt.Errorf("message %d: empty content", i)
		}
		if msg.ID == "" {
			msg.ID = fmt.Sprintf("msg-%03d", i+1)
		}
	}

	return file.Messages, nil
}

// loadCatalog resolves the vocabulary: the embedded default, or the file
// named by --catalog unified against the embedded schema.
func loadCatalog(opts *RootOptions) (*catalog.Catalog, error) {
	if opts.Catalog != "" {
		return catalog.Load(opts.Catalog)
	}
	return catalog.Default()
}

// newReducer builds the reducer for the configured catalog.
func newReducer(opts *RootOptions) (*engine.Reducer, error) {
	cat, err := loadCatalog(opts)
	if err != nil {
		return nil, err
	}
	return engine.NewReducer(cat)
}

// caller resolves the identity flags into an auth provider.
func caller(opts *RootOptions) (auth.Provider, error) {
	if opts.AsUser == "" {
		return nil, fmt.Errorf("--user is required for this command")
	}
	if opts.AsRole != auth.RoleClient && opts.AsRole != auth.RoleAdmin {
		return nil, fmt.Errorf("invalid role %q: must be client or admin", opts.AsRole)
	}
	return auth.StaticProvider{User: auth.User{
		ID:    opts.AsUser,
		Email: opts.AsUser,
		Role:  opts.AsRole,
	}}, nil
}
