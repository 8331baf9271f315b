package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lion.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveAccount(&domain.Account{UUID: "u1", Username: "Steve", Kind: domain.AccountOffline}))
	require.NoError(t, first.Close())

	// Reopening must not re-run migrations or lose data
	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	accounts, err := second.GetAccounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestAccounts_ActiveIsExclusive(t *testing.T) {
	db := setupTestDB(t)

	for _, name := range []string{"Alex", "Steve", "Notch"} {
		require.NoError(t, db.SaveAccount(&domain.Account{UUID: "id-" + name, Username: name, Kind: domain.AccountOffline}))
	}

	active, err := db.GetActiveAccount()
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, db.SetActiveAccount("id-Alex"))
	require.NoError(t, db.SetActiveAccount("id-Steve"))

	active, err = db.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Steve", active.Username)

	accounts, err := db.GetAccounts()
	require.NoError(t, err)
	count := 0
	for _, a := range accounts {
		if a.Active {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, db.SetActiveAccount("missing"), domain.ErrAccountNotFound)
}

func TestDeleteAccount_PromotesNext(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveAccount(&domain.Account{UUID: "a", Username: "A", Kind: domain.AccountOffline}))
	require.NoError(t, db.SaveAccount(&domain.Account{UUID: "b", Username: "B", Kind: domain.AccountMicrosoft, HeadURL: "https://crafatar.com/avatars/b"}))
	require.NoError(t, db.SetActiveAccount("a"))

	next, err := db.DeleteAccount("a")
	require.NoError(t, err)
	assert.Equal(t, "b", next)

	active, err := db.GetActiveAccount()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "b", active.UUID)
	assert.Equal(t, "https://crafatar.com/avatars/b", active.HeadURL)

	// Removing the last account leaves nothing active
	next, err = db.DeleteAccount("b")
	require.NoError(t, err)
	assert.Empty(t, next)

	_, err = db.DeleteAccount("b")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = db.GetAccount("b")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestContent_SaveToggleDelete(t *testing.T) {
	db := setupTestDB(t)

	item := &domain.ContentItem{
		ProfileID:  "p1",
		Kind:       domain.ContentMod,
		Filename:   "sodium-fabric-0.5.3.jar",
		SourceID:   "modrinth",
		RegistryID: "AANobbMI",
		VersionID:  "v1",
		Name:       "Sodium",
		Version:    "0.5.3",
		SHA1:       "abc",
		Enabled:    true,
	}
	require.NoError(t, db.SaveContent(item))
	require.NoError(t, db.SaveContent(&domain.ContentItem{ProfileID: "p1", Kind: domain.ContentResourcePack, Filename: "faithful.zip", Name: "Faithful", Enabled: true}))

	mods, err := db.GetContent("p1", domain.ContentMod)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "Sodium", mods[0].Name)
	assert.False(t, mods[0].InstalledAt.IsZero())

	require.NoError(t, db.SetContentEnabled("p1", domain.ContentMod, "sodium-fabric-0.5.3.jar", false))

	got, err := db.GetContentItem("p1", domain.ContentMod, "sodium-fabric-0.5.3.jar")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "sodium-fabric-0.5.3.jar.disabled", got.Filename)
	assert.Equal(t, "sodium-fabric-0.5.3.jar", got.BaseFilename())

	byProject, err := db.GetContentByRegistryID("modrinth", "AANobbMI")
	require.NoError(t, err)
	assert.Len(t, byProject, 1)

	refs, err := db.CountContentBySHA1("abc")
	require.NoError(t, err)
	assert.Equal(t, 1, refs)

	require.NoError(t, db.DeleteContent("p1", domain.ContentMod, "sodium-fabric-0.5.3.jar"))
	assert.ErrorIs(t, db.DeleteContent("p1", domain.ContentMod, "sodium-fabric-0.5.3.jar"), domain.ErrContentNotFound)
	assert.ErrorIs(t, db.SetContentEnabled("p1", domain.ContentMod, "nope.jar", true), domain.ErrContentNotFound)

	require.NoError(t, db.DeleteProfileContent("p1"))
	packs, err := db.GetContent("p1", domain.ContentResourcePack)
	require.NoError(t, err)
	assert.Empty(t, packs)
}

func TestMaterialized(t *testing.T) {
	db := setupTestDB(t)

	graphID, err := db.GetMaterialized("p1")
	require.NoError(t, err)
	assert.Empty(t, graphID)

	require.NoError(t, db.ReplaceMaterialized("p1", "1.20.1-vanilla", []string{"k1", "k2"}))
	require.NoError(t, db.ReplaceMaterialized("p2", "1.20.1-fabric-0.15.7", []string{"k2", "k3"}))
	require.NoError(t, db.ReplaceMaterialized("p1", "1.20.4-vanilla", []string{"k4"}))

	graphID, err = db.GetMaterialized("p1")
	require.NoError(t, err)
	assert.Equal(t, "1.20.4-vanilla", graphID)

	keys, err := db.MaterializedKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"k2": true, "k3": true, "k4": true}, keys)

	require.NoError(t, db.DeleteMaterialized("p2"))
	keys, err = db.MaterializedKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"k4": true}, keys)
}

func TestDocuments(t *testing.T) {
	db := setupTestDB(t)

	doc, err := db.GetDocument("version_manifest")
	require.NoError(t, err)
	assert.Nil(t, doc)

	fetched := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveDocument(&Document{Key: "version_manifest", URL: "https://example.com/m.json", Body: []byte(`{"a":1}`), FetchedAt: fetched}))
	require.NoError(t, db.SaveDocument(&Document{Key: "version_manifest", URL: "https://example.com/m.json", Body: []byte(`{"a":2}`), FetchedAt: fetched.Add(time.Hour)}))

	doc, err = db.GetDocument("version_manifest")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, `{"a":2}`, string(doc.Body))
	assert.True(t, fetched.Add(time.Hour).Equal(doc.FetchedAt))
}
