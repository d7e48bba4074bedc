package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

func containers(quantities ...int) []domain.Container {
	out := make([]domain.Container, len(quantities))
	for i, q := range quantities {
		out[i] = domain.Container{
			SerialNumber: "C" + string(rune('A'+i)),
			PartNumber:   "PART-X",
			Quantity:     q,
			Location:     domain.LocationEndOfLine,
			Status:       domain.ContainerStatusActive,
		}
	}
	return out
}

func serials(cs []domain.Container) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.SerialNumber
	}
	return out
}

func TestSelectForWithdrawal_LargestFirst(t *testing.T) {
	selected, err := SelectForWithdrawal(containers(100, 150), 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"CB"}, serials(selected))
}

func TestSelectForWithdrawal_TakesWholeContainers(t *testing.T) {
	selected, err := SelectForWithdrawal(containers(30, 70, 50), 100)
	require.NoError(t, err)

	// 70 then 50; the 30 is never needed
	assert.Equal(t, []string{"CB", "CC"}, serials(selected))
}

func TestSelectForWithdrawal_ExactFit(t *testing.T) {
	selected, err := SelectForWithdrawal(containers(70, 50), 120)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestSelectForWithdrawal_EqualQuantitiesKeepInputOrder(t *testing.T) {
	selected, err := SelectForWithdrawal(containers(150, 150), 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA"}, serials(selected))
}

func TestSelectForWithdrawal_Insufficient(t *testing.T) {
	_, err := SelectForWithdrawal(containers(70, 50), 121)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Contains(t, err.Error(), "need 121, available 120")
}

func TestSelectForWithdrawal_Empty(t *testing.T) {
	_, err := SelectForWithdrawal(nil, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
}

func TestSelectForWithdrawal_NonPositiveQuantity(t *testing.T) {
	for _, q := range []int{0, -5} {
		selected, err := SelectForWithdrawal(containers(10), q)
		require.NoError(t, err)
		assert.Empty(t, selected)
	}
}

func TestSelectForWithdrawal_DoesNotMutateInput(t *testing.T) {
	input := containers(10, 30, 20)
	before := append([]domain.Container(nil), input...)

	_, err := SelectForWithdrawal(input, 40)
	require.NoError(t, err)
	assert.Equal(t, before, input)
}

func TestSelectForWithdrawal_MinimalPrefix(t *testing.T) {
	cases := []struct {
		name       string
		quantities []int
		need       int
		want       int
	}{
		{"single large", []int{5, 100, 5}, 90, 1},
		{"two needed", []int{40, 40, 40}, 41, 2},
		{"all needed", []int{1, 2, 3}, 6, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			selected, err := SelectForWithdrawal(containers(tc.quantities...), tc.need)
			require.NoError(t, err)
			assert.Len(t, selected, tc.want)

			total := 0
			for _, c := range selected {
				total += c.Quantity
			}
			assert.GreaterOrEqual(t, total, tc.need)
			assert.Less(t, total-selected[len(selected)-1].Quantity, tc.need)
		})
	}
}
