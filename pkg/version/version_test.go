package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAcceptsVersionWithinRange(t *testing.T) {
	err := Check(KindPlugin, "Agent", "0.19")
	assert.NoError(t, err)
}

func TestCheckRejectsBelowMinimum(t *testing.T) {
	err := Check(KindProgram, "ods-signerd", "1.3.10")
	require.Error(t, err)
	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
}

func TestCheckRejectsAboveMaximum(t *testing.T) {
	err := Check(KindProgram, "ods-signerd", "1.4.0")
	require.Error(t, err)
	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "Software ods-signerd version 1.4.0 is not supported. Supported are minimum version 1.3.14 and maximum version 1.3.15", uv.Error())
	assert.Equal(t, "ods-signerd", uv.Component)
}

func TestCheckAcceptsUpperBoundOfRange(t *testing.T) {
	err := Check(KindProgram, "ods-signerd", "1.3.15")
	assert.NoError(t, err)
}

func TestCheckRequiredComponentMissing(t *testing.T) {
	err := Check(KindPlugin, "Agent", "")
	require.Error(t, err)
	var mc *MissingComponentError
	require.ErrorAs(t, err, &mc)
}

func TestCheckOptionalComponentMissing(t *testing.T) {
	err := Check(KindPlugin, "SoftHSM", "")
	assert.NoError(t, err)
}

func TestCheckUnknownComponentIgnored(t *testing.T) {
	err := Check(KindPlugin, "SomethingElse", "not-a-version")
	assert.NoError(t, err)
}

func TestCheckAllDetectsMissingRequiredComponent(t *testing.T) {
	reported := map[string]string{
		"ods-control": "1",
	}
	err := CheckAll(KindProgram, reported)
	require.Error(t, err)
}

func TestErrorPlacesNodeClauseBeforeVerdict(t *testing.T) {
	err := Check(KindProgram, "ods-signerd", "1.3.13")
	require.Error(t, err)
	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	uv.NodeID = "4e2f9c39-7f0a-4b3e-9a5a-9a0a6e6a2b11"
	assert.Equal(t, "Software ods-signerd version 1.3.13 on node 4e2f9c39-7f0a-4b3e-9a5a-9a0a6e6a2b11 is not supported. Supported are minimum version 1.3.14 and maximum version 1.3.15", uv.Error())
}

func TestCheckAllAcceptsFullReport(t *testing.T) {
	reported := map[string]string{
		"ods-control":   "1",
		"ods-signerd":   "1.3.15",
		"ods-signer":    "1.3.15",
		"ods-enforcerd": "1.3.15",
		"ods-ksmutil":   "1.3.15",
	}
	err := CheckAll(KindProgram, reported)
	assert.NoError(t, err)
}
