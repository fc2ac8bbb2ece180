package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityType
		wantErr bool
	}{
		{"products", EntityProduct, false},
		{"categories", EntityCategory, false},
		{"product", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEntityType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestProduct_SearchDocument(t *testing.T) {
	desc := "Warm wool socks"
	p := Product{ID: 42, Title: "Socks", Description: &desc, IsActive: true}

	assert.Equal(t, "42", p.DocumentID())

	raw, err := json.Marshal(p.SearchDocument())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Socks","description":"Warm wool socks","short_description":null}`, string(raw))
}

func TestCategory_SearchDocument_OmitsNonTextFields(t *testing.T) {
	parent := int64(1)
	c := Category{ID: 7, Title: "Shoes", ParentID: &parent}

	raw, err := json.Marshal(c.SearchDocument())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Shoes","description":null}`, string(raw))
}

func TestInputApply_DefaultsActive(t *testing.T) {
	var p Product
	ProductInput{Title: "Hat"}.Apply(&p)
	assert.True(t, p.IsActive)

	inactive := false
	var c Category
	CategoryInput{Title: "Hats", IsActive: &inactive}.Apply(&c)
	assert.False(t, c.IsActive)
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskInProgress.Terminal())
	assert.True(t, TaskDone.Terminal())
	assert.True(t, TaskError.Terminal())
}
