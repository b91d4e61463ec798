package graphstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
	"github.com/roach88/graphrecon/internal/testutil"
)

const (
	personType   ir.VersionedURL = "https://example.com/@acme/types/entity-type/person/v/1"
	personTypeV2 ir.VersionedURL = "https://example.com/@acme/types/entity-type/person/v/2"
	worksForType ir.VersionedURL = "https://example.com/@acme/types/entity-type/works-for/v/1"

	nameKey    = "https://example.com/@acme/types/property-type/name/"
	ageKey     = "https://example.com/@acme/types/property-type/age/"
	activeKey  = "https://example.com/@acme/types/property-type/active/"
	addressKey = "https://example.com/@acme/types/property-type/address/"
	sinceKey   = "https://example.com/@acme/types/property-type/since/"

	web   ir.OwnedByID = "web-1"
	actor ir.AccountID = "actor-1"
)

var _ reconcile.GraphAPI = (*Store)(nil)

func personSchema(id ir.VersionedURL) ir.EntityTypeSchema {
	return ir.EntityTypeSchema{
		ID:    id,
		Title: "Person",
		Properties: map[ir.BaseURL]ir.PropertySchema{
			nameKey:    {Title: "Name", Type: ir.PropertyText},
			ageKey:     {Title: "Age", Type: ir.PropertyNumber},
			activeKey:  {Title: "Active", Type: ir.PropertyBoolean},
			addressKey: {Title: "Address", Type: ir.PropertyObject},
		},
		Required: []ir.BaseURL{nameKey},
	}
}

func worksForSchema() ir.EntityTypeSchema {
	return ir.EntityTypeSchema{
		ID:    worksForType,
		Title: "Works For",
		Properties: map[ir.BaseURL]ir.PropertySchema{
			sinceKey: {Title: "Since", Type: ir.PropertyNumber},
		},
		IsLink: true,
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "graph.db"),
		WithIDGenerator(testutil.NewSequentialIDs()),
		WithClock(testutil.NewDeterministicClock().Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.RegisterEntityType(ctx, personSchema(personType)))
	require.NoError(t, s.RegisterEntityType(ctx, personSchema(personTypeV2)))
	require.NoError(t, s.RegisterEntityType(ctx, worksForSchema()))
	return s
}

func createPerson(t *testing.T, s *Store, props ir.Object) ir.EntityMetadata {
	t.Helper()
	md, err := s.CreateEntity(context.Background(), actor, reconcile.CreateEntityRequest{
		EntityTypeID:  personType,
		OwnedByID:     web,
		Properties:    props,
		Relationships: reconcile.DefaultRelationships(),
	})
	require.NoError(t, err)
	return md
}

func TestOpen_AppliesSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := Open(path)
	require.NoError(t, err)

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var fk int
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
	require.NoError(t, s.Close())

	// Reopening an existing database is idempotent.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RegisterEntityType(context.Background(), personSchema(personType)))
	types, err := s.EntityTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 1)
}

func TestRegisterEntityType(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Same schema again is a no-op.
	require.NoError(t, s.RegisterEntityType(ctx, personSchema(personType)))

	changed := personSchema(personType)
	changed.Title = "Human"
	err := s.RegisterEntityType(ctx, changed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered with a different schema")

	invalid := personSchema("not-a-url")
	assert.Error(t, s.RegisterEntityType(ctx, invalid))

	got, err := s.EntityType(ctx, personType)
	require.NoError(t, err)
	assert.Equal(t, personSchema(personType), got)

	_, err = s.EntityType(ctx, "https://example.com/@acme/types/entity-type/ghost/v/1")
	assert.True(t, errors.Is(err, ErrEntityTypeNotFound))

	types, err := s.EntityTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 3)
	assert.Equal(t, personType, types[0].ID)
	assert.Equal(t, personTypeV2, types[1].ID)
	assert.Equal(t, worksForType, types[2].ID)
}

func TestValidateEntity_Properties(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	validate := func(props ir.Object, draft bool) error {
		return s.ValidateEntity(ctx, actor, reconcile.ValidateEntityRequest{
			EntityTypeID: personType,
			Properties:   props,
			Draft:        draft,
			Operations:   []string{reconcile.ValidationOperationAll},
		})
	}

	assert.NoError(t, validate(ir.Object{nameKey: ir.String("Ada"), ageKey: ir.Int(36)}, false))

	err := validate(ir.Object{nameKey: ir.String("Ada"), ageKey: ir.String("old"), "https://x/unknown/": ir.Int(1)}, false)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, personType, ve.EntityTypeID)
	assert.Equal(t, []string{
		`property "` + ageKey + `" must be of type number`,
		`property "https://x/unknown/" is not declared by the type`,
	}, ve.Problems)

	err = validate(ir.Object{ageKey: ir.Int(1)}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required property "`+nameKey+`" is missing`)

	assert.NoError(t, validate(ir.Object{ageKey: ir.Int(1)}, true), "drafts skip required properties")

	assert.Error(t, validate(ir.Object{nameKey: ir.Null{}}, false), "null is never a valid value")
}

func TestValidateEntity_Operations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.ValidateEntity(ctx, actor, reconcile.ValidateEntityRequest{
		EntityTypeID: personType,
		Properties:   ir.Object{},
		Operations:   []string{ValidationOperationProperties},
	})
	assert.NoError(t, err, "required check not requested")

	err = s.ValidateEntity(ctx, actor, reconcile.ValidateEntityRequest{
		EntityTypeID: personType,
		Operations:   []string{"spelling"},
	})
	assert.EqualError(t, err, `unknown validation operation "spelling"`)

	err = s.ValidateEntity(ctx, actor, reconcile.ValidateEntityRequest{
		EntityTypeID: "https://example.com/@acme/types/entity-type/ghost/v/1",
	})
	assert.ErrorIs(t, err, ErrEntityTypeNotFound)
}

func TestValidateEntity_LinkData(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ada := createPerson(t, s, ir.Object{nameKey: ir.String("Ada")})
	bob := createPerson(t, s, ir.Object{nameKey: ir.String("Bob")})
	link := &ir.LinkData{LeftEntityID: ada.RecordID.EntityID, RightEntityID: bob.RecordID.EntityID}

	validate := func(typeID ir.VersionedURL, props ir.Object, ld *ir.LinkData) error {
		return s.ValidateEntity(ctx, actor, reconcile.ValidateEntityRequest{
			EntityTypeID: typeID,
			Properties:   props,
			LinkData:     ld,
			Operations:   []string{reconcile.ValidationOperationAll},
		})
	}

	assert.NoError(t, validate(worksForType, ir.Object{sinceKey: ir.Int(1842)}, link))

	err := validate(worksForType, ir.Object{}, nil)
	assert.ErrorContains(t, err, "link entity type requires link data")

	err = validate(personType, ir.Object{nameKey: ir.String("Ada")}, link)
	assert.ErrorContains(t, err, "link data given for a non-link entity type")

	ghost := &ir.LinkData{LeftEntityID: ada.RecordID.EntityID, RightEntityID: ir.NewEntityID(web, "ghost")}
	err = validate(worksForType, ir.Object{}, ghost)
	assert.ErrorContains(t, err, "right entity web-1~ghost does not exist")

	require.NoError(t, s.ArchiveEntity(ctx, bob.RecordID.EntityID))
	err = validate(worksForType, ir.Object{}, link)
	assert.ErrorContains(t, err, "right entity "+string(bob.RecordID.EntityID)+" is archived")
}

func TestCreateEntity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	md := createPerson(t, s, ir.Object{nameKey: ir.String("Ada"), ageKey: ir.Int(36)})

	assert.Equal(t, ir.NewEntityID(web, ir.EntityUUID(testutil.SequentialID(1))), md.RecordID.EntityID)
	assert.Equal(t, testutil.SequentialID(2), md.RecordID.EditionID)
	assert.Equal(t, personType, md.EntityTypeID)
	assert.Equal(t, testutil.Epoch.Add(time.Second), md.CreatedAt)
	assert.False(t, md.Draft)

	got, err := s.GetEntity(ctx, md.RecordID.EntityID)
	require.NoError(t, err)
	assert.Equal(t, md, got.Metadata)
	assert.Equal(t, ir.Object{nameKey: ir.String("Ada"), ageKey: ir.Int(36)}, got.Properties)
	assert.Nil(t, got.LinkData)

	rels, err := s.Relationships(ctx, md.RecordID.EntityID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DefaultRelationships(), rels)

	var createdBy string
	require.NoError(t, s.DB().QueryRow(`SELECT created_by_id FROM entities WHERE entity_uuid = ?`,
		string(md.RecordID.EntityID.UUID())).Scan(&createdBy))
	assert.Equal(t, string(actor), createdBy)
}

func TestCreateEntity_Errors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateEntity(ctx, actor, reconcile.CreateEntityRequest{
		EntityTypeID: personType,
		Properties:   ir.Object{nameKey: ir.String("Ada")},
	})
	assert.EqualError(t, err, "create entity: ownedById is required")

	_, err = s.CreateEntity(ctx, actor, reconcile.CreateEntityRequest{
		EntityTypeID: personType,
		OwnedByID:    web,
		Properties:   ir.Object{ageKey: ir.Int(1)},
	})
	assert.True(t, IsValidationError(err))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&count))
	assert.Equal(t, 0, count, "failed creates leave nothing behind")
}

func TestCreateEntity_LinkRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ada := createPerson(t, s, ir.Object{nameKey: ir.String("Ada")})
	bob := createPerson(t, s, ir.Object{nameKey: ir.String("Bob")})
	link := &ir.LinkData{LeftEntityID: ada.RecordID.EntityID, RightEntityID: bob.RecordID.EntityID}

	md, err := s.CreateEntity(ctx, actor, reconcile.CreateEntityRequest{
		EntityTypeID: worksForType,
		OwnedByID:    web,
		Properties:   ir.Object{sinceKey: ir.Int(1842)},
		LinkData:     link,
		Draft:        true,
	})
	require.NoError(t, err)
	assert.True(t, md.Draft)

	got, err := s.GetEntity(ctx, md.RecordID.EntityID)
	require.NoError(t, err)
	assert.Equal(t, link, got.LinkData)
	assert.True(t, got.Metadata.Draft)

	rels, err := s.Relationships(ctx, md.RecordID.EntityID)
	require.NoError(t, err)
	assert.Empty(t, rels)
	assert.NotNil(t, rels)
}

func TestArchiveEntity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	md := createPerson(t, s, ir.Object{nameKey: ir.String("Ada")})
	require.NoError(t, s.ArchiveEntity(ctx, md.RecordID.EntityID))

	got, err := s.GetEntity(ctx, md.RecordID.EntityID)
	require.NoError(t, err)
	assert.True(t, got.Metadata.Archived)

	err = s.ArchiveEntity(ctx, ir.NewEntityID(web, "missing"))
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = s.GetEntity(ctx, ir.NewEntityID(web, "missing"))
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
