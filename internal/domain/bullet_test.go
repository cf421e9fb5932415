package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidityStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    ValidityStatus
		wantErr bool
	}{
		{"valid", ValidityValid, false},
		{"invalid", ValidityInvalid, false},
		{"", ValidityValid, false},
		{"stale", "", true},
		{"VALID", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseValidityStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBulletPointHelpers(t *testing.T) {
	bp := BulletPoint{
		ID:             1,
		TeamID:         10,
		ValidityStatus: ValidityValid,
		Children:       []BulletPoint{{ID: 2, TeamID: 20}},
	}

	assert.True(t, bp.IsValid())
	assert.Nil(t, bp.WithoutChildren().Children)
	assert.Len(t, bp.Children, 1, "WithoutChildren must not mutate the receiver")

	bp.ValidityStatus = ValidityInvalid
	assert.False(t, bp.IsValid())
}

func TestDetailsBulletPoint(t *testing.T) {
	d := BulletPointDetails{
		ID:                5,
		TeamID:            2,
		EchelonLevel:      "Company",
		Content:           "fuel low",
		ValidityStatus:    ValidityInvalid,
		ChildBulletPoints: []int64{3},
		ChildRawData:      []int64{9},
	}

	bp := d.BulletPoint()
	assert.Equal(t, BulletPoint{ID: 5, TeamID: 2, EchelonLevel: "Company", Content: "fuel low", ValidityStatus: ValidityInvalid}, bp)
}

func TestLinkValidate(t *testing.T) {
	assert.NoError(t, Link{ParentID: 1, ChildID: 2}.Validate())

	err := Link{ParentID: 3, ChildID: 3}.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestTeamParent(t *testing.T) {
	root := NewTeam(1, "Battalion", "Battalion", 0)
	_, ok := root.Parent()
	assert.False(t, ok)

	child := NewTeam(2, "Alpha", "Company", 1)
	pid, ok := child.Parent()
	assert.True(t, ok)
	assert.Equal(t, int64(1), pid)

	zero := int64(0)
	explicitZero := Team{ID: 3, ParentID: &zero}
	_, ok = explicitZero.Parent()
	assert.False(t, ok, "a zero parent id is treated as no parent")
}

func TestMatchesKeyword(t *testing.T) {
	assert.True(t, MatchesKeyword("LOGISTICS convoy delayed", "Logistics"))
	assert.False(t, MatchesKeyword("weather clear", "casualty"))
	assert.True(t, MatchesKeyword("anything", ""))
	assert.True(t, MatchesKeyword("anything", "  "))
	assert.False(t, MatchesKeyword("", "fuel"))
}
