package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/world"
)

func TestValidFeature(t *testing.T) {
	segment := []geo.Point{{X: 100, Y: 100}, {X: 500, Y: 100}}
	triangle := []geo.Point{{X: 100, Y: 100}, {X: 500, Y: 100}, {X: 300, Y: 400}}

	tests := []struct {
		name    string
		feature world.Feature
		wantErr bool
	}{
		{"two-point path is a valid segment", world.Feature{Kind: world.KindPath, Points: segment}, false},
		{"one-point path rejected", world.Feature{Kind: world.KindPath, Points: segment[:1]}, true},
		{"two-point wall rejected", world.Feature{Kind: world.KindWall, Points: segment}, true},
		{"two-point water rejected", world.Feature{Kind: world.KindWater, Points: segment}, true},
		{"triangle wall accepted", world.Feature{Kind: world.KindWall, Points: triangle}, false},
		{"region without realm rejected", world.Feature{Kind: world.KindRegion, Points: triangle}, true},
		{"unknown kind rejected", world.Feature{Kind: "portal", Points: triangle}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.feature
			err := validFeature(&f)
			if tc.wantErr {
				assert.ErrorIs(t, err, errs.ErrBadRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidFeatureNormalizesRegionRealm(t *testing.T) {
	f := world.Feature{
		Kind:   world.KindRegion,
		Realm:  "b",
		Points: []geo.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 50, Y: 100}},
	}
	require.NoError(t, validFeature(&f))
	assert.Equal(t, "B", f.Realm)

	// Non-region kinds shed any realm the client sent.
	f = world.Feature{Kind: world.KindWall, Realm: "A",
		Points: []geo.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 50, Y: 100}}}
	require.NoError(t, validFeature(&f))
	assert.Empty(t, f.Realm)
}
