package mergefield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

func testContext() Context {
	return Context{
		Contact: &domain.Contact{Name: "Maria Lopez", Role: "CTO", Email: "maria@acme.io"},
		Company: &domain.Company{Name: "Acme", Website: "acme.io"},
		Sender:  &domain.User{Email: "ana@5ducks.ai", Username: "Ana"},
	}
}

func TestResolveAllMergeFields(t *testing.T) {
	r := NewResolver()

	out, err := r.ResolveAllMergeFields("Hi {{first_name}}, how is {{company_name}}? - {{sender_name}}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "Hi Maria, how is Acme? - Ana", out)

	out, err = r.ResolveAllMergeFields("{{last_name}} / {{contact_role}}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "Lopez / CTO", out)
}

func TestResolveAllMergeFields_MissingCompany(t *testing.T) {
	r := NewResolver()
	mc := testContext()
	mc.Company = nil

	out, err := r.ResolveAllMergeFields("At {{company_name}}.", mc)
	require.NoError(t, err)
	assert.Equal(t, "At .", out)

	out, err = r.ResolveAllMergeFields(`At {{company_name | default: "your company"}}.`, mc)
	require.NoError(t, err)
	assert.Equal(t, "At your company.", out)
}

func TestResolveAllMergeFields_PlainText(t *testing.T) {
	out, err := NewResolver().ResolveAllMergeFields("no tokens here", Context{})
	require.NoError(t, err)
	assert.Equal(t, "no tokens here", out)
}

func TestResolveAllMergeFields_SyntaxError(t *testing.T) {
	_, err := NewResolver().ResolveAllMergeFields("Hi {% if first_name %}unterminated", testContext())
	assert.Error(t, err)
}

func TestResolveAllMergeFields_Extra(t *testing.T) {
	mc := testContext()
	mc.Extra = map[string]any{"first_name": "Mari"}

	out, err := NewResolver().ResolveAllMergeFields("{{first_name}}", mc)
	require.NoError(t, err)
	assert.Equal(t, "Mari", out)
}
