package utils

import (
	"github.com/shopspring/decimal"
)

func (suite *UtilsTestSuite) TestRoundToDecimalPrecision() {
	suite.Equal(0.33333333, RoundToDecimalPrecision(1.0/3.0, 8))
	suite.Equal(1.23, RoundToDecimalPrecision(1.239, 2))
	suite.Equal(5.0, RoundToDecimalPrecision(5, 0))
}

func (suite *UtilsTestSuite) TestSplitEvenly() {
	tests := []struct {
		name      string
		total     string
		n         int
		precision int
		expected  []string
	}{
		{name: "thirds", total: "1", n: 3, precision: 8, expected: []string{"0.33333333", "0.33333333", "0.33333334"}},
		{name: "exact", total: "3", n: 3, precision: 8, expected: []string{"1", "1", "1"}},
		{name: "single leg", total: "0.7", n: 1, precision: 2, expected: []string{"0.7"}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			legs := SplitEvenly(decimal.RequireFromString(tt.total), tt.n, tt.precision)
			suite.Len(legs, len(tt.expected))

			sum := decimal.Zero
			for i, leg := range legs {
				suite.True(decimal.RequireFromString(tt.expected[i]).Equal(leg), "leg %d: %s", i, leg)
				sum = sum.Add(leg)
			}

			suite.True(sum.Equal(decimal.RequireFromString(tt.total)))
		})
	}

	suite.Nil(SplitEvenly(decimal.NewFromInt(1), 0, 8))
}

func (suite *UtilsTestSuite) TestPercentOf() {
	suite.Equal(5.0, PercentOf(500, 10000))
	suite.Equal(0.0, PercentOf(500, 0))
}

func (suite *UtilsTestSuite) TestWithinBand() {
	suite.True(WithinBand(50000, 50000, 0.1))
	suite.True(WithinBand(50050, 50000, 0.1))
	suite.True(WithinBand(49950, 50000, 0.1))
	suite.False(WithinBand(50051, 50000, 0.1))
	suite.False(WithinBand(49949, 50000, 0.1))
}
