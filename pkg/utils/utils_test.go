package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

type sampleFirm struct {
	Name          string   `json:"name" jsonschema:"description=Prop firm name"`
	Balance       float64  `json:"balance" jsonschema:"description=Starting balance"`
	DailyDrawdown *float64 `json:"daily_drawdown,omitempty"`
}

type sampleCatalog struct {
	Version string       `json:"version"`
	Firms   []sampleFirm `json:"firms"`
}

func (suite *UtilsTestSuite) TestGetSchemaFromConfig() {
	schema, err := GetSchemaFromConfig(&sampleCatalog{})
	suite.Require().NoError(err)

	var result map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &result))
	suite.Contains(result, "$schema")
	suite.Contains(result, "$defs")

	defs, ok := result["$defs"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(defs, "sampleFirm")
}

func (suite *UtilsTestSuite) TestGetSchemaFromPrimitive() {
	schema, err := GetSchemaFromConfig(42)
	suite.NoError(err)
	suite.Contains(schema, "integer")
}
