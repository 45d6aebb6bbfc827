package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ConnectIsTransitive(t *testing.T) {
	r := NewRegistry()
	leaf := &fixedDensity{id: "leaf"}
	mid := NewCompound("mid", leaf)
	root := NewCompound("root", mid)

	r.Connect(root)

	assert.True(t, r.IsConnected(root))
	assert.True(t, r.IsConnected(mid))
	assert.True(t, r.IsConnected(leaf))
	assert.Empty(t, r.Orphans())
	assert.Len(t, r.Densities(), 3)
}

func TestRegistry_Orphans(t *testing.T) {
	r := NewRegistry()
	used := &fixedDensity{id: "used"}
	unused := &fixedDensity{id: "unused"}
	r.AddDensity(used)
	r.AddDensity(unused)

	r.Connect(NewCompound("joint", used))

	assert.Equal(t, []string{"unused"}, r.Orphans())
}

func TestRegistry_SharedComponentVisitedOnce(t *testing.T) {
	shared := &fixedDensity{id: "shared"}
	root := NewCompound("root", NewCompound("a", shared), NewCompound("b", shared))

	var ids []string
	Walk(root, func(d Density) { ids = append(ids, d.ID()) })

	assert.Equal(t, []string{"root", "a", "shared", "b"}, ids)
}

func TestRegistry_StorablesKeepOrderAndDeduplicate(t *testing.T) {
	r := NewRegistry()
	a := NewParameter("a", 0)
	b := NewParameter("b", 0)

	r.AddStorable(a)
	r.AddStorable(b)
	r.AddStorable(a)

	got := r.Storables()
	assert.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
}
