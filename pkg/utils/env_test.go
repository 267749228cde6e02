package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("AGENT_TEST_STRING", "datanode")
	t.Setenv("AGENT_TEST_EMPTY_STRING", "")

	assert.Equal(t, "datanode", GetEnvString("AGENT_TEST_STRING", "fallback"))
	assert.Equal(t, "", GetEnvString("AGENT_TEST_EMPTY_STRING", "fallback"), "set but empty is not missing")
	assert.Equal(t, "fallback", GetEnvString("AGENT_TEST_MISSING_STRING", "fallback"))
}
