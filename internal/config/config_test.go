package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelIDsDecodeParsesCommaSeparatedList(t *testing.T) {
	var ids channelIDs
	require.NoError(t, ids.Decode("100,200, 300"))
	assert.Equal(t, channelIDs{100, 200, 300}, ids)
}

func TestChannelIDsDecodeEmptyIsNoop(t *testing.T) {
	var ids channelIDs
	require.NoError(t, ids.Decode(""))
	assert.Nil(t, ids)
}

func TestChannelIDsDecodeRejectsNonInteger(t *testing.T) {
	var ids channelIDs
	assert.Error(t, ids.Decode("not-a-number"))
}
