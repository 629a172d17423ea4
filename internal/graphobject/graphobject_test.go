package graphobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityValidate(t *testing.T) {
	t.Run("valid entity", func(t *testing.T) {
		e := Entity{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}}
		assert.NoError(t, e.Validate())
	})

	t.Run("missing key", func(t *testing.T) {
		e := Entity{"_type": "widget", "_class": []string{"Widget"}}
		assert.Error(t, e.Validate())
	})

	t.Run("missing type", func(t *testing.T) {
		e := Entity{"_key": "k1", "_class": []string{"Widget"}}
		assert.Error(t, e.Validate())
	})

	t.Run("missing class", func(t *testing.T) {
		e := Entity{"_key": "k1", "_type": "widget"}
		assert.Error(t, e.Validate())
	})

	t.Run("class as bare string", func(t *testing.T) {
		e := Entity{"_key": "k1", "_type": "widget", "_class": "Widget"}
		assert.NoError(t, e.Validate())
		assert.Equal(t, []string{"Widget"}, e.Class())
	})
}

func TestRelationshipValidate(t *testing.T) {
	t.Run("valid direct relationship", func(t *testing.T) {
		r := Relationship{
			"_key": "a|HAS|b", "_type": "has", "_class": []string{"HAS"},
			"_fromEntityKey": "a", "_toEntityKey": "b",
		}
		assert.NoError(t, r.Validate())
		assert.False(t, r.IsMapped())
	})

	t.Run("direct relationship missing endpoints", func(t *testing.T) {
		r := Relationship{"_key": "a|HAS|b", "_type": "has", "_class": []string{"HAS"}}
		assert.Error(t, r.Validate())
	})

	t.Run("valid mapped relationship", func(t *testing.T) {
		r := Relationship{
			"_key": "m1", "_type": "has", "_class": []string{"HAS"},
			"_mapping": map[string]any{
				"relationshipDirection": "FORWARD",
				"sourceEntityKey":       "a",
				"targetEntity":          "widget",
				"targetFilterKeys":      []string{"_key"},
			},
		}
		assert.NoError(t, r.Validate())
		assert.True(t, r.IsMapped())
	})

	t.Run("mapped relationship missing mapping field", func(t *testing.T) {
		r := Relationship{
			"_key": "m1", "_type": "has", "_class": []string{"HAS"},
			"_mapping": map[string]any{
				"relationshipDirection": "FORWARD",
				"sourceEntityKey":       "a",
			},
		}
		assert.Error(t, r.Validate())
	})

	t.Run("mapping not an object", func(t *testing.T) {
		r := Relationship{
			"_key": "m1", "_type": "has", "_class": []string{"HAS"},
			"_mapping": "not-an-object",
		}
		assert.Error(t, r.Validate())
	})
}

func TestStepDeclaredAndPartialTypes(t *testing.T) {
	step := &Step{
		ID: "a",
		Entities: []EntityTypeDeclaration{
			{Type: "account", Class: []string{"Account"}},
			{Type: "user", Class: []string{"User"}, Partial: true},
		},
		Relationships: []RelationshipTypeDeclaration{
			{Type: "account_has_user", Class: []string{"HAS"}, Partial: true},
		},
	}

	assert.Equal(t, []string{"account", "user", "account_has_user"}, step.DeclaredTypes())
	assert.Equal(t, []string{"user", "account_has_user"}, step.PartialTypes())
	assert.True(t, step.DeclaresType("account"))
	assert.False(t, step.DeclaresType("nonexistent"))
	assert.True(t, step.IsPartialType("user"))
	assert.False(t, step.IsPartialType("account"))
}

func TestComputePartialDatasets(t *testing.T) {
	t.Run("union of failed and dependency-failed declared types", func(t *testing.T) {
		results := []StepResult{
			{ID: "a", Status: StatusFailure, DeclaredTypes: []string{"account"}},
			{ID: "b", Status: StatusPartialSuccessDueToDependencyFailure, DeclaredTypes: []string{"user"}},
			{ID: "c", Status: StatusSuccess, DeclaredTypes: []string{"ignored"}},
		}
		got := ComputePartialDatasets(results)
		assert.Equal(t, []string{"account", "user"}, got.Types)
	})

	t.Run("partial types flow through regardless of status", func(t *testing.T) {
		results := []StepResult{
			{ID: "a", Status: StatusSuccess, PartialTypes: []string{"user"}},
		}
		got := ComputePartialDatasets(results)
		assert.Equal(t, []string{"user"}, got.Types)
	})

	t.Run("a disabled step's declared partial types still surface", func(t *testing.T) {
		results := []StepResult{
			{ID: "a", Status: StatusDisabled, DeclaredTypes: []string{"account"}, PartialTypes: []string{"account"}},
		}
		got := ComputePartialDatasets(results)
		assert.Equal(t, []string{"account"}, got.Types)
	})

	t.Run("deduplicates across steps", func(t *testing.T) {
		results := []StepResult{
			{ID: "a", Status: StatusFailure, DeclaredTypes: []string{"account"}},
			{ID: "b", Status: StatusFailure, DeclaredTypes: []string{"account"}},
		}
		got := ComputePartialDatasets(results)
		assert.Equal(t, []string{"account"}, got.Types)
	})

	t.Run("no results yields empty metadata", func(t *testing.T) {
		got := ComputePartialDatasets(nil)
		assert.Empty(t, got.Types)
	})
}

func TestStepStatusIsTerminalAndFailureLike(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusDisabled.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())

	assert.True(t, StatusFailure.IsFailureLike())
	assert.True(t, StatusPartialSuccessDueToDependencyFailure.IsFailureLike())
	assert.False(t, StatusSuccess.IsFailureLike())
}
