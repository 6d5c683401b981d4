package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/store/memory"
)

func person(name string) bonus.Person {
	return bonus.Person{
		Name:           name,
		Role:           bonus.RoleSalesEdu,
		Target:         decimal.NewFromInt(400000),
		CollectionRate: decimal.RequireFromString("0.9"),
	}
}

func TestMemory_PersonLifecycle(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	a, err := m.CreatePerson(ctx, person("a"))
	require.NoError(t, err)
	b, err := m.CreatePerson(ctx, person("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := m.GetPerson(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Name)

	a.Name = "a2"
	updated, err := m.UpdatePerson(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "a2", updated.Name)
	assert.True(t, updated.CreatedAt.Equal(a.CreatedAt))

	require.NoError(t, m.DeletePerson(ctx, b.ID))
	persons, err := m.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "a2", persons[0].Name)

	missing, err := m.GetPerson(ctx, b.ID)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_NotFoundAndDuplicate(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	_, err := m.UpdatePerson(ctx, bonus.Person{ID: "x"})
	assert.ErrorIs(t, err, bonus.ErrPersonNotFound)
	assert.ErrorIs(t, m.DeletePerson(ctx, "x"), bonus.ErrPersonNotFound)

	p := person("p")
	p.ID = "p"
	_, err = m.CreatePerson(ctx, p)
	require.NoError(t, err)
	_, err = m.CreatePerson(ctx, p)
	assert.ErrorIs(t, err, bonus.ErrDuplicatePerson)
}

func TestMemory_ReplacePersons_KeepsRosterOnFailure(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	_, err := m.CreatePerson(ctx, person("keep"))
	require.NoError(t, err)

	x, y := person("x"), person("y")
	x.ID, y.ID = "dup", "dup"
	_, err = m.ReplacePersons(ctx, []bonus.Person{x, y})
	require.ErrorIs(t, err, bonus.ErrDuplicatePerson)

	persons, err := m.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "keep", persons[0].Name)

	out, err := m.ReplacePersons(ctx, []bonus.Person{person("n1"), person("n2")})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	persons, err = m.ListPersons(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n1", persons[0].Name)
	assert.Equal(t, "n2", persons[1].Name)

	require.NoError(t, m.DeleteAllPersons(ctx))
	persons, err = m.ListPersons(ctx)
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestMemory_Parameters(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	params, err := m.GetParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, bonus.DefaultParameters(), params)

	bad := bonus.DefaultParameters()
	bad.OtherMode = "maybe"
	assert.ErrorIs(t, m.SaveParameters(ctx, bad), bonus.ErrInvalidParameters)

	good := bonus.DefaultParameters()
	good.SplitPayout = true
	require.NoError(t, m.SaveParameters(ctx, good))

	params, err = m.GetParameters(ctx)
	require.NoError(t, err)
	assert.True(t, params.SplitPayout)
	assert.False(t, params.UpdatedAt.IsZero())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreatePerson(ctx, person("p"))
			assert.NoError(t, err)
			_, err = m.ListPersons(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	persons, err := m.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, persons, 20)
}

func TestMemory_Reset(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	_, err := m.CreatePerson(ctx, person("p"))
	require.NoError(t, err)
	params := bonus.DefaultParameters()
	params.DMMode = bonus.ModeStack
	require.NoError(t, m.SaveParameters(ctx, params))

	require.NoError(t, m.Reset(ctx))

	persons, err := m.ListPersons(ctx)
	require.NoError(t, err)
	assert.Empty(t, persons)
	got, err := m.GetParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, bonus.DefaultParameters(), got)
}
