// Package mergefield resolves merge tokens such as {{first_name}} or
// {{company_name}} in user-authored template text against the contact,
// company and sender of a single send.
package mergefield

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

// Context is the data available to merge tokens. Company and Sender may
// be nil; their tokens then render empty.
type Context struct {
	Contact *domain.Contact
	Company *domain.Company
	Sender  *domain.User
	Extra   map[string]any
}

// Bindings flattens the context into liquid bindings.
func (c Context) Bindings() map[string]any {
	b := make(map[string]any, 16)
	if c.Contact != nil {
		name := strings.TrimSpace(c.Contact.Name)
		b["first_name"] = c.Contact.FirstName()
		b["last_name"] = lastName(name)
		b["full_name"] = name
		b["contact_name"] = name
		b["contact_role"] = c.Contact.Role
		b["contact_email"] = c.Contact.Email
	}
	if c.Company != nil {
		b["company_name"] = c.Company.Name
		b["company_website"] = c.Company.Website
		b["company_description"] = c.Company.Description
	}
	if c.Sender != nil {
		b["sender_name"] = c.Sender.DisplayName()
		b["sender_email"] = c.Sender.Email
	}
	for k, v := range c.Extra {
		b[k] = v
	}
	return b
}

func lastName(full string) string {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// Resolver renders merge tokens. Parsed templates are cached by source
// text because campaigns render the same subject and body per recipient.
type Resolver struct {
	engine *liquid.Engine
	mu     sync.RWMutex
	cache  map[string]*liquid.Template
}

// NewResolver creates a resolver with an empty cache.
func NewResolver() *Resolver {
	return &Resolver{engine: liquid.NewEngine(), cache: make(map[string]*liquid.Template)}
}

// ResolveAllMergeFields renders text against mc. Unknown tokens render as
// empty strings. Text without any "{{" or "{%" is returned unchanged.
func (r *Resolver) ResolveAllMergeFields(text string, mc Context) (string, error) {
	if !strings.Contains(text, "{{") && !strings.Contains(text, "{%") {
		return text, nil
	}
	tpl, err := r.parse(text)
	if err != nil {
		return "", err
	}
	out, rerr := tpl.RenderString(mc.Bindings())
	if rerr != nil {
		return "", fmt.Errorf("render merge fields: %w", rerr)
	}
	return out, nil
}

func (r *Resolver) parse(text string) (*liquid.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[text]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, perr := r.engine.ParseString(text)
	if perr != nil {
		return nil, fmt.Errorf("parse merge fields: %w", perr)
	}
	r.mu.Lock()
	r.cache[text] = tpl
	r.mu.Unlock()
	return tpl, nil
}
