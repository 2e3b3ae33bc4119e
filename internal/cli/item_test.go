package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pantry/internal/activity"
	"github.com/roach88/pantry/internal/catalog"
	"github.com/roach88/pantry/internal/lookup"
	"github.com/roach88/pantry/internal/settings"
)

// stockPantry adds four items around testEpoch: one expiring fresh item in
// the fridge, one expiring other item, one far off and one expired.
func stockPantry(e *testEnv) {
	e.mustRun("room", "add", "Cuisine")
	e.mustRun("space", "add", "Cuisine", "Frigo", "--floors")
	e.mustRun("item", "add", "Lait", "--category", "fresh", "--expires", "2024-03-02", "--room", "Cuisine", "--space", "Frigo")
	e.mustRun("item", "add", "Pâtes", "--expires", "2024-03-06")
	e.mustRun("item", "add", "Riz", "--expires", "2024-06-01")
	e.mustRun("item", "add", "Yaourt", "--category", "fresh", "--expires", "2024-02-28")
}

func TestItemAddWithLocation(t *testing.T) {
	e := newTestEnv(t, "json", "")
	e.mustRun("room", "add", "Cuisine")
	e.mustRun("space", "add", "Cuisine", "Frigo")

	var it catalog.Item
	decode(t, e.mustRun("item", "add", "Beurre", "--brand", "Président", "--quantity", "2",
		"--room", "Cuisine", "--space", "Frigo"), &it)

	assert.Equal(t, int64(1), it.ID)
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", it.Ref)
	assert.Equal(t, "Beurre", it.Name)
	assert.Equal(t, "Président", it.Brand)
	assert.Equal(t, 2, it.Quantity)
	assert.Equal(t, "Cuisine - Frigo", it.StorageLocation)
}

func TestItemAddUnknownSpace(t *testing.T) {
	e := newTestEnv(t, "json", "")
	e.mustRun("room", "add", "Cuisine")

	out, err := e.run("item", "add", "Beurre", "--room", "Cuisine", "--space", "Cellier")
	require.Error(t, err)
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	var items []catalog.Item
	decode(t, e.mustRun("item", "list"), &items)
	assert.Empty(t, items)
}

func TestItemAddFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"location_and_room", []string{"item", "add", "Beurre", "--location", "Frigo", "--room", "Cuisine", "--space", "Frigo"}, ErrCodeInvalidArgs},
		{"room_without_space", []string{"item", "add", "Beurre", "--room", "Cuisine"}, ErrCodeInvalidArgs},
		{"unknown_category", []string{"item", "add", "Beurre", "--category", "frozen"}, ErrCodeInvalidItem},
		{"bad_date", []string{"item", "add", "Beurre", "--expires", "01/03/2024"}, ErrCodeInvalidItem},
		{"no_name", []string{"item", "add"}, ErrCodeInvalidItem},
		{"lookup_without_barcode", []string{"item", "add", "--lookup"}, ErrCodeInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, "json", "")

			out, err := e.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decode(t, out, nil)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestItemUpdateMovesAndRecordsActivity(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	var it catalog.Item
	decode(t, e.mustRun("item", "update", "2", "--quantity", "3", "--room", "Cuisine", "--space", "Frigo"), &it)
	assert.Equal(t, 3, it.Quantity)
	assert.Equal(t, "Cuisine - Frigo", it.StorageLocation)
	assert.Equal(t, "Pâtes", it.Name)

	var entries []activity.Entry
	decode(t, e.mustRun("activity", "recent", "--limit", "2"), &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.TypeUpdate, entries[0].Type)
	assert.Equal(t, "Produit modifié: Pâtes", entries[0].Description)
	assert.Equal(t, "Nouveau produit ajouté: Yaourt", entries[1].Description)
}

func TestItemConsume(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	var it catalog.Item
	decode(t, e.mustRun("item", "consume", "1"), &it)
	assert.True(t, it.Consumed)
	assert.Equal(t, "2024-03-01", it.ConsumedDate)

	var expiring []ExpiringItem
	decode(t, e.mustRun("item", "expiring"), &expiring)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Pâtes", expiring[0].Name)
}

func TestItemDeleteAndShow(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	var res ItemDeleteResult
	decode(t, e.mustRun("item", "delete", "3"), &res)
	assert.Equal(t, int64(3), res.ID)

	out, err := e.run("item", "show", "3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	out, err = e.run("item", "delete", "3")
	require.Error(t, err)
	resp = decode(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	var entries []activity.Entry
	decode(t, e.mustRun("activity", "recent", "--limit", "1"), &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Produit supprimé: Riz", entries[0].Description)
}

func TestItemShowBadID(t *testing.T) {
	e := newTestEnv(t, "json", "")

	out, err := e.run("item", "show", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeInvalidArgs, resp.Error.Code)
}

func TestItemExpiringGolden(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	out := e.mustRun("item", "expiring")
	newGoldie(t).Assert(t, "item_expiring", []byte(out))
}

func TestItemExpiringText(t *testing.T) {
	e := newTestEnv(t, "text", "")
	stockPantry(e)

	out := e.mustRun("item", "expiring")
	assert.Contains(t, out, "#1 Lait, 1 day left (2024-03-02)")
	assert.Contains(t, out, "#2 Pâtes, 5 days left (2024-03-06)")
	assert.NotContains(t, out, "Riz")
}

func TestItemExpiringFollowsSettings(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	e.mustRun("settings", "set", "--fresh-enabled=false", "--other-days", "3")

	var expiring []ExpiringItem
	decode(t, e.mustRun("item", "expiring"), &expiring)
	assert.Empty(t, expiring)
}

func TestItemStats(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	var st catalog.Stats
	decode(t, e.mustRun("item", "stats"), &st)
	assert.Equal(t, catalog.Stats{TotalItems: 4, FreshItems: 1, ExpiringItems: 2, ExpiredItems: 1}, st)
}

func TestItemBarcode(t *testing.T) {
	e := newTestEnv(t, "json", "")
	e.mustRun("item", "add", "Nutella", "--barcode", "3017620422003")

	var it catalog.Item
	decode(t, e.mustRun("item", "barcode", "3017620422003"), &it)
	assert.Equal(t, "Nutella", it.Name)

	_, err := e.run("item", "barcode", "0000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestActivityPrune(t *testing.T) {
	e := newTestEnv(t, "json", "")
	stockPantry(e)

	e.clock.Advance(31 * 24 * time.Hour)
	e.mustRun("item", "delete", "1")

	var res PruneResult
	decode(t, e.mustRun("activity", "prune"), &res)
	assert.Equal(t, int64(4), res.Removed)
	assert.Equal(t, activity.DefaultRetentionDays, res.Days)

	var entries []activity.Entry
	decode(t, e.mustRun("activity", "recent"), &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.TypeRemove, entries[0].Type)

	_, err := e.run("activity", "prune", "--days=-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSettingsShowAndSet(t *testing.T) {
	e := newTestEnv(t, "json", "")

	var got settings.Expiry
	decode(t, e.mustRun("settings", "show"), &got)
	assert.Equal(t, settings.Defaults(), got)

	decode(t, e.mustRun("settings", "set", "--fresh-days", "4"), &got)
	want := settings.Defaults()
	want.FreshProducts.WarningDays = 4
	assert.Equal(t, want, got)

	decode(t, e.mustRun("settings", "show"), &got)
	assert.Equal(t, want, got)

	out, err := e.run("settings", "set", "--other-days=-2")
	require.Error(t, err)
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeInvalidSettings, resp.Error.Code)
}

const productJSON = `{
	"status": 1,
	"product": {
		"code": "3017620422003",
		"product_name_fr": "Pâte à tartiner Nutella",
		"brands": "Ferrero",
		"quantity": "400 g",
		"image_front_url": "https://images.example/front.jpg",
		"nutriments": {"energy-kcal_100g": 539, "proteins_100g": 6.3, "fat_100g": 30.9}
	}
}`

func newLookupEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product/3017620422003.json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, productJSON)
	}))
	t.Cleanup(srv.Close)
	return newTestEnv(t, "json", "lookup:\n  base_url: "+srv.URL+"\n")
}

func TestLookupCommand(t *testing.T) {
	e := newLookupEnv(t)

	var p lookup.Product
	decode(t, e.mustRun("lookup", "3017620422003"), &p)
	assert.Equal(t, "Pâte à tartiner Nutella", p.Name)
	assert.Equal(t, "Ferrero", p.Brands)
	assert.Equal(t, "400 g", p.Quantity)

	out, err := e.run("lookup", "123")
	require.Error(t, err)
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestItemAddWithLookup(t *testing.T) {
	e := newLookupEnv(t)

	var it catalog.Item
	decode(t, e.mustRun("item", "add", "--barcode", "3017620422003", "--lookup", "--expires", "2024-09-01"), &it)
	assert.Equal(t, "Pâte à tartiner Nutella", it.Name)
	assert.Equal(t, "Ferrero", it.Brand)
	assert.Equal(t, "https://images.example/front.jpg", it.ImageURL)
	require.NotNil(t, it.NutritionalInfo)
	assert.Equal(t, catalog.NutritionalInfo{Calories: 539, Protein: 6.3, Fat: 30.9}, *it.NutritionalInfo)

	// An explicit name wins over the product name.
	decode(t, e.mustRun("item", "add", "Nutella", "--barcode", "3017620422003", "--lookup"), &it)
	assert.Equal(t, "Nutella", it.Name)
}
