package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
	"github.com/roach88/graphrecon/internal/testutil"
)

func TestIdentityKeys(t *testing.T) {
	props := ir.Object{
		"https://x/property-type/name/":           ir.String("a"),
		"https://x/property-type/display-name/":   ir.String("b"),
		"https://x/property-type/legal-name/":     ir.String("c"),
		"https://x/property-type/preferred-name/": ir.String("d"),
		"https://x/property-type/profile-url/":    ir.String("e"),
		"https://x/property-type/Name/":           ir.String("case matters"),
		"https://x/property-type/nickname/":       ir.String("no"),
		"https://x/property-type/name/v/1":        ir.String("not slash-terminated"),
		"name/":                                   ir.String("bare"),
	}

	assert.Equal(t, []string{
		"https://x/property-type/display-name/",
		"https://x/property-type/legal-name/",
		"https://x/property-type/name/",
		"https://x/property-type/preferred-name/",
		"https://x/property-type/profile-url/",
		"name/",
	}, reconcile.IdentityKeys(props))

	assert.Empty(t, reconcile.IdentityKeys(ir.Object{ageKey: ir.Int(1)}))
	assert.Empty(t, reconcile.IdentityKeys(nil))
}

func TestDuplicateFilter(t *testing.T) {
	assert.Nil(t, reconcile.DuplicateFilter(owner, personType, ir.Object{ageKey: ir.Int(1)}))

	f := reconcile.DuplicateFilter(owner, personType, ir.Object{
		nameKey: ir.String("Ada"),
		ageKey:  ir.Int(36),
	})
	require.NoError(t, filter.Validate(f))
	assert.Equal(t,
		`all[archived=false, any[properties.`+nameKey+`="Ada"], ownedById="web-1", type.versionedUrl="`+string(personType)+`"]`,
		filter.Describe(f))
}

func TestLinkDuplicateFilter(t *testing.T) {
	f := reconcile.LinkDuplicateFilter(ir.LinkData{
		LeftEntityID:  ir.NewEntityID("web-1", "left"),
		RightEntityID: ir.NewEntityID("web-2", "right"),
	})
	require.NoError(t, filter.Validate(f))
	assert.Equal(t,
		`all[archived=false, leftEntity.ownedById="web-1", leftEntity.uuid="left", rightEntity.ownedById="web-2", rightEntity.uuid="right"]`,
		filter.Describe(f))
}

func TestMatcher_FindDuplicate(t *testing.T) {
	ada := testutil.ExistingEntity(owner, "ada", personType, ir.Object{nameKey: ir.String("Ada")})
	graph := testutil.NewRecordingGraph(ada)
	m := reconcile.NewMatcher(graph, actor)
	ctx := context.Background()

	got, err := m.FindDuplicate(ctx, owner, personType, ir.Object{nameKey: ir.String("Ada"), ageKey: ir.Int(1)})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ada.EntityID(), got.EntityID())

	got, err = m.FindDuplicate(ctx, owner, personType, ir.Object{nameKey: ir.String("Grace")})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.FindDuplicate(ctx, owner, personType, ir.Object{ageKey: ir.Int(1)})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, graph.CallsTo(testutil.MethodQuery), 2, "no query without identity keys")
}

func TestMatcher_FindDuplicateFirstResultWins(t *testing.T) {
	first := testutil.ExistingEntity(owner, "first", personType, ir.Object{nameKey: ir.String("Ada")})
	second := testutil.ExistingEntity(owner, "second", personType, ir.Object{nameKey: ir.String("Ada")})
	graph := testutil.NewRecordingGraph(first, second)

	got, err := reconcile.NewMatcher(graph, actor).FindDuplicate(context.Background(), owner, personType, ir.Object{nameKey: ir.String("Ada")})
	require.NoError(t, err)
	assert.Equal(t, first.EntityID(), got.EntityID())
}

func TestMatcher_QueryError(t *testing.T) {
	graph := testutil.NewRecordingGraph()
	graph.QueryHook = func(reconcile.QueryEntitiesRequest) ([]ir.Entity, error) {
		return nil, errors.New("down")
	}

	_, err := reconcile.NewMatcher(graph, actor).FindDuplicateLink(context.Background(), ir.LinkData{
		LeftEntityID:  "web-1~a",
		RightEntityID: "web-1~b",
	})
	assert.EqualError(t, err, "down")
}

func TestIsMatch(t *testing.T) {
	existing := ir.Object{
		"a/": ir.String("x"),
		"b/": ir.Int(1),
		"c/": ir.Object{"k": ir.String("v"), "extra": ir.Bool(true)},
		"d/": ir.Array{ir.Object{"k": ir.Int(1), "z": ir.Int(2)}, ir.Int(3)},
		"e/": ir.Null{},
	}

	tests := []struct {
		name     string
		proposed ir.Object
		want     bool
	}{
		{"empty proposal", ir.Object{}, true},
		{"equal subset", ir.Object{"a/": ir.String("x"), "b/": ir.Int(1)}, true},
		{"differing value", ir.Object{"a/": ir.String("y")}, false},
		{"missing key", ir.Object{"zz/": ir.String("x")}, false},
		{"type mismatch", ir.Object{"b/": ir.String("1")}, false},
		{"nested subset", ir.Object{"c/": ir.Object{"k": ir.String("v")}}, true},
		{"nested differing", ir.Object{"c/": ir.Object{"k": ir.String("w")}}, false},
		{"array element subset", ir.Object{"d/": ir.Array{ir.Object{"k": ir.Int(1)}, ir.Int(3)}}, true},
		{"array length differs", ir.Object{"d/": ir.Array{ir.Object{"k": ir.Int(1)}}}, false},
		{"array order matters", ir.Object{"d/": ir.Array{ir.Int(3), ir.Object{"k": ir.Int(1)}}}, false},
		{"null equals null", ir.Object{"e/": ir.Null{}}, true},
		{"null is not absent", ir.Object{"a/": ir.Null{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconcile.IsMatch(existing, tt.proposed))
		})
	}
}
