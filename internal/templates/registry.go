// Package templates is the closed registry of drip email templates.
//
// Each template key maps to a Builder that renders subject, HTML and plain
// text from one variable set. Sources are Liquid and are compiled once at
// package init; an unknown key yields nil rather than an error.
package templates

import (
	"fmt"
	"html"
	"log"
	"sort"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/osteele/liquid"
)

// Vars are the substitution variables handed to a Builder.
type Vars map[string]any

// Builder renders one template from a variable set.
type Builder func(vars Vars) *domain.EmailContent

var (
	engine   = newEngine()
	registry = map[string]Builder{}
)

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()

	// {{ name | default: "there" }} also treats empty strings as missing
	e.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})
	e.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
	return e
}

// register compiles the three sources of a template and adds it under key.
// It panics on a parse error since sources are static.
func register(key, subject, htmlSrc, textSrc string) {
	subj := mustParse(key, "subject", subject)
	h := mustParse(key, "html", htmlSrc)
	txt := mustParse(key, "text", textSrc)

	registry[key] = func(vars Vars) *domain.EmailContent {
		bindings := withDefaults(vars)
		s, err := subj.RenderString(bindings)
		if err != nil {
			log.Printf("[Templates] %s subject render error: %v", key, err)
			return nil
		}
		hb, err := h.RenderString(bindings)
		if err != nil {
			log.Printf("[Templates] %s html render error: %v", key, err)
			return nil
		}
		tb, err := txt.RenderString(bindings)
		if err != nil {
			log.Printf("[Templates] %s text render error: %v", key, err)
			return nil
		}
		return &domain.EmailContent{Subject: s, HTML: hb, Text: tb}
	}
}

func mustParse(key, part, src string) *liquid.Template {
	tpl, err := engine.ParseString(src)
	if err != nil {
		panic(fmt.Sprintf("templates: parse %s/%s: %v", key, part, err))
	}
	return tpl
}

func withDefaults(vars Vars) map[string]interface{} {
	out := map[string]interface{}{
		"app_name": "5Ducks",
		"app_url":  "https://5ducks.ai",
	}
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// BuildEmailFromTemplate renders the template registered under key.
// It returns nil when the key is unknown; callers treat that as a terminal,
// non-retryable failure.
func BuildEmailFromTemplate(key string, vars Vars) *domain.EmailContent {
	b, ok := registry[key]
	if !ok {
		return nil
	}
	return b(vars)
}

// Has reports whether key is registered.
func Has(key string) bool {
	_, ok := registry[key]
	return ok
}

// Keys returns the registered template keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
