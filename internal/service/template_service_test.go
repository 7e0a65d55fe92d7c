package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDefaults(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.NoError(t, env.templates.EnsureDefaults(ctx))
	all, err := env.templates.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].IsFree)
	require.False(t, all[1].IsFree)
	require.Equal(t, 19900, all[1].PriceMinorUnits)
	require.Equal(t, "INR", all[1].Currency)

	// Idempotent: a populated catalog is left alone.
	require.NoError(t, env.templates.EnsureDefaults(ctx))
	all, err = env.templates.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestCreateTemplate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	created, err := env.templates.Create(ctx, CreateTemplateInput{
		Name:            "Beach Sunset",
		Prompt:          "a couple on the beach at sunset",
		PriceMinorUnits: 9900,
	})
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.Equal(t, "INR", created.Currency)
	require.Equal(t, 9900, created.PriceMinorUnits)

	_, err = env.templates.Create(ctx, CreateTemplateInput{Prompt: "p"})
	require.Error(t, err)
	_, err = env.templates.Create(ctx, CreateTemplateInput{Name: "n"})
	require.Error(t, err)
	_, err = env.templates.Create(ctx, CreateTemplateInput{Name: "n", Prompt: "p"})
	require.Error(t, err)

	// Free templates cannot carry a price.
	free, err := env.templates.Create(ctx, CreateTemplateInput{
		Name:            "Free One",
		Prompt:          "p",
		IsFree:          true,
		PriceMinorUnits: 5000,
	})
	require.NoError(t, err)
	require.Zero(t, free.PriceMinorUnits)
}

func TestUpdateTemplate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	tpl := env.seedPaidTemplate(t, 19900)

	price := 24900
	updated, err := env.templates.Update(ctx, tpl.ID, UpdateTemplateInput{PriceMinorUnits: &price})
	require.NoError(t, err)
	require.Equal(t, 24900, updated.PriceMinorUnits)
	require.Equal(t, tpl.Name, updated.Name)

	free := true
	updated, err = env.templates.Update(ctx, tpl.ID, UpdateTemplateInput{IsFree: &free})
	require.NoError(t, err)
	require.True(t, updated.IsFree)
	require.Zero(t, updated.PriceMinorUnits)

	// Flipping back to paid needs a price again.
	paid := false
	_, err = env.templates.Update(ctx, tpl.ID, UpdateTemplateInput{IsFree: &paid})
	require.Error(t, err)
	_, err = env.templates.Update(ctx, tpl.ID, UpdateTemplateInput{IsFree: &paid, PriceMinorUnits: &price})
	require.NoError(t, err)

	_, err = env.templates.Update(ctx, 9999, UpdateTemplateInput{})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestArchiveTemplate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	tpl := env.seedFreeTemplate(t)

	require.NoError(t, env.templates.Archive(ctx, tpl.ID))

	// Archived templates drop out of the catalog but stay addressable.
	active, err := env.templates.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
	archived, err := env.templates.Get(ctx, tpl.ID)
	require.NoError(t, err)
	require.True(t, archived.IsArchived)
	require.False(t, archived.IsActive)
	require.NotNil(t, archived.ArchivedAt)

	require.ErrorIs(t, env.templates.Archive(ctx, tpl.ID), ErrInvalidState)
	require.ErrorIs(t, env.templates.Archive(ctx, 9999), ErrTemplateNotFound)
}

func TestGrantFreeCredits(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, 2)

	granted, err := env.users.GrantFreeCredits(ctx, user.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 5, granted.FreeCreditsRemaining)

	// Negative grants clamp at zero instead of going below.
	clamped, err := env.users.GrantFreeCredits(ctx, user.ID, -10)
	require.NoError(t, err)
	require.Equal(t, 0, clamped.FreeCreditsRemaining)

	_, err = env.users.GrantFreeCredits(ctx, 9999, 1)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetSubscribed(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, 0)

	updated, err := env.users.SetSubscribed(ctx, user.ID, true)
	require.NoError(t, err)
	require.True(t, updated.IsSubscribed)

	updated, err = env.users.SetSubscribed(ctx, user.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsSubscribed)
}
