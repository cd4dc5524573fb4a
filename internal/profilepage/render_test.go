package profilepage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carpool-service/internal/rides"
)

type idCard struct{}

func (idCard) RenderRide(w io.Writer, r rides.Ride) error {
	_, err := fmt.Fprintf(w, "<%s>\n", r.ID)
	return err
}

func render(t *testing.T, p *Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	return buf.String()
}

func TestRenderViewMode(t *testing.T) {
	p, _ := loadedPage(t, new(mockAPI))
	p.SetRideCard(idCard{})

	out := render(t, p)

	for _, want := range []string{
		"[A] ada",
		"★ 4.5 - 2 ratings",
		"Trust Score: 73",
		"Bio: Early commuter",
		"29 y/o",
		"1 Rides published",
		"Member since 2023",
		"Jazz",
		"Pets welcome",
		"Weekly: 1.50 kg CO₂",
		"Monthly: 6.12 kg CO₂",
		"Published Rides",
		"<ride-1>",
		"Recently joined rides",
		"No rides",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "[delete")
}

func TestRenderDeleteModeAndEdit(t *testing.T) {
	p, _ := loadedPage(t, new(mockAPI))
	p.ToggleDeleteMode()
	p.StartEdit()
	p.EditName("Ada L")

	out := render(t, p)

	assert.Contains(t, out, "Published Rides (delete mode)")
	assert.Contains(t, out, "[delete ride-1]")
	assert.Contains(t, out, "Name: Ada L")
	assert.NotContains(t, out, "About")
}

func TestRenderOmitsMissingTrustScore(t *testing.T) {
	u := sampleUser()
	u.TrustScore = nil
	api := new(mockAPI)
	api.On("GetUser", mock.Anything, "u1").Return(u, nil)
	api.On("GetCarbonSavings", mock.Anything, "u1").Return(nil, assert.AnError)
	p := New(api, nil, signedIn(), &recorder{})
	require.NoError(t, p.Load(context.Background()))

	out := render(t, p)

	assert.Contains(t, out, "★ 4.5 - 2 ratings")
	assert.NotContains(t, out, "Trust Score")
}

func TestRenderWithoutSavings(t *testing.T) {
	api := new(mockAPI)
	api.On("GetUser", mock.Anything, "u1").Return(sampleUser(), nil)
	api.On("GetCarbonSavings", mock.Anything, "u1").Return(nil, assert.AnError)
	p := New(api, nil, signedIn(), &recorder{})
	require.NoError(t, p.Load(context.Background()))

	assert.Contains(t, render(t, p), "Savings data not available.")
}

func TestRenderLoading(t *testing.T) {
	p := New(new(mockAPI), nil, signedIn(), &recorder{})
	assert.Equal(t, StateLoading, p.State())
	assert.Equal(t, "Loading...\n", render(t, p))
}

func TestKgCO2(t *testing.T) {
	assert.Equal(t, "0.00", KgCO2(0))
	assert.Equal(t, "1.23", KgCO2(1234))
	assert.Equal(t, "12.35", KgCO2(12345))
}

func TestAvatarFallback(t *testing.T) {
	u := sampleUser()
	assert.Equal(t, "A", avatar(u))
	u.Name = ""
	assert.Equal(t, "?", avatar(u))
	u.ProfilePicture = "https://img.example/me.png"
	assert.Equal(t, "https://img.example/me.png", avatar(u))
}
