package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const freeboxTestBase = "https://subscriber.test"

func newTestFreebox(d *fakeDriver) *Freebox {
	f := NewFreebox(FreeboxCredentials{Login: "0123456789", Password: "pw"}, Options{
		NewDriver: d.factory(),
		Timeout:   150 * time.Millisecond,
	})
	f.baseURL = freeboxTestBase
	return f
}

func TestFreeboxLogin(t *testing.T) {
	d := newFakeDriver()
	login := &fakeElement{}
	password := &fakeElement{}
	d.pages[freeboxTestBase+"/"] = &fakePage{
		text: "Identifiant Mot de passe Se connecter",
		elements: map[string][]*fakeElement{
			"input[name='login']":    {login},
			"input[name='pass']":     {password},
			"input[type='password']": {password},
			"input[type='submit']": {{onClick: func(d *fakeDriver) {
				d.goTo(freeboxTestBase + "/home.pl?id=1")
			}}},
		},
	}
	d.pages[freeboxTestBase+"/home.pl?id=1"] = &fakePage{text: "Bienvenue dans votre espace abonné"}

	f := newTestFreebox(d)
	require.NoError(t, f.Login(context.Background(), ""))
	assert.Equal(t, "0123456789", login.value)
	assert.Equal(t, "pw", password.value)
	assert.True(t, f.Session().Authenticated)
}

func TestFreeboxLoggedIn(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))
	auth := freeboxAuth{f}

	assert.False(t, auth.LoggedIn(ctx))

	d.url = freeboxTestBase + "/home.pl"
	d.page = &fakePage{text: "Session invalide"}
	assert.False(t, auth.LoggedIn(ctx))

	d.page = &fakePage{
		text:     "Se connecter",
		elements: map[string][]*fakeElement{"input[type='password']": {{}}},
	}
	assert.False(t, auth.LoggedIn(ctx))

	d.page = &fakePage{text: "Mes factures"}
	assert.True(t, auth.LoggedIn(ctx))

	d.url = "https://elsewhere.test/"
	assert.False(t, auth.LoggedIn(ctx))
}

func TestFreeboxNavigateFollowsBillingLink(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()

	billing := link("Ma facturation", "/facturation/liste.pl")
	billing.onClick = func(d *fakeDriver) { d.goTo(freeboxTestBase + "/facturation/liste.pl") }
	d.pages[freeboxTestBase+"/facturation/"] = &fakePage{
		text:     "Accueil",
		elements: map[string][]*fakeElement{"a": {link("Assistance", "/aide"), billing}},
	}
	d.pages[freeboxTestBase+"/facturation/liste.pl"] = &fakePage{
		text: "Vos factures",
		elements: map[string][]*fakeElement{
			freeboxInvoiceLinks: {
				link("Facture du 1 mars 2024", "/facture.pl?no=1"),
				link("Facture du 1 février 2024", "/facture.pl?no=2"),
				link("Déconnexion", "/logout.pl"),
				link("", ""),
				link("Facture du 1 mars 2024", "/facture.pl?no=1"),
			},
		},
	}

	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))
	require.NoError(t, f.NavigateToInvoiceListing(ctx))

	recs, err := f.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, freeboxTestBase+"/facture.pl?no=1", recs[0].Handle.URL)
	assert.Equal(t, "2024-03-01", recs[0].InvoiceDate.ISO())
	assert.False(t, recs[0].StableID)
	assert.Equal(t, "2024-02-01", recs[1].InvoiceDate.ISO())
	assert.NotEqual(t, recs[0].OrderID, recs[1].OrderID)

	assert.False(t, f.HasNextPage(ctx))
	assert.Error(t, f.AdvanceToNextPage(ctx))
}

func TestFreeboxNavigateWaitsForDelayedBillingPage(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()

	billing := link("Mes factures", "/facturation/liste.pl")
	billing.onClick = func(d *fakeDriver) {
		go func() {
			time.Sleep(60 * time.Millisecond)
			d.goTo(freeboxTestBase + "/facturation/liste.pl")
		}()
	}
	d.pages[freeboxTestBase+"/facturation/"] = &fakePage{
		text: "Accueil",
		elements: map[string][]*fakeElement{
			"a":                 {billing},
			freeboxInvoiceLinks: {billing},
		},
	}
	d.pages[freeboxTestBase+"/facturation/liste.pl"] = &fakePage{
		text: "Vos factures",
		elements: map[string][]*fakeElement{
			freeboxInvoiceLinks: {link("Facture du 1 mars 2024", "/facture.pl?no=7")},
		},
	}

	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))
	require.NoError(t, f.NavigateToInvoiceListing(ctx))

	recs, err := f.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, freeboxTestBase+"/facture.pl?no=7", recs[0].Handle.URL)
}

func TestFreeboxNavigateBillingLinkNeverLoads(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	d.pages[freeboxTestBase+"/facturation/"] = &fakePage{
		text:     "Accueil",
		elements: map[string][]*fakeElement{"a": {link("Mes factures", "/facturation/liste.pl")}},
	}

	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))

	err := f.NavigateToInvoiceListing(ctx)
	assert.True(t, errors.Is(err, service.ErrListingUnreachable))
	assert.ErrorContains(t, err, "billing page did not load")
}

func TestFreeboxNavigateWithoutSession(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	for _, p := range freeboxBillingPaths {
		d.pages[freeboxTestBase+p] = &fakePage{text: "Session invalide"}
	}

	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))

	err := f.NavigateToInvoiceListing(ctx)
	assert.True(t, errors.Is(err, service.ErrListingUnreachable))
	assert.Len(t, d.visited, len(freeboxBillingPaths))
}

func TestFreeboxOTPChallenge(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	f := newTestFreebox(d)
	require.NoError(t, f.start(ctx))

	assert.False(t, f.IsOTPRequired(ctx))
	d.show("input[name*='otp']", &fakeElement{})
	assert.True(t, f.IsOTPRequired(ctx))
}
